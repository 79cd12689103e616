package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// SOCKS5Transport returns a transport that dials every connection through the
// SOCKS5 proxy at addr (host:port), e.g. a local Tor daemon on 127.0.0.1:9050.
// If the dialer cannot be created, every request fails instead of going out
// directly.
func SOCKS5Transport(addr string) *http.Transport {
	t := &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		t.DialContext = func(context.Context, string, string) (net.Conn, error) {
			return nil, fmt.Errorf("socks5 proxy %s: %w", addr, err)
		}
		return t
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
		return t
	}
	t.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		done := make(chan result, 1)
		go func() {
			conn, err := dialer.Dial(network, address)
			done <- result{conn, err}
		}()
		select {
		case r := <-done:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-done; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
	return t
}
