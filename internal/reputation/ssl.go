package reputation

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/crypto/ocsp"
)

const (
	noTLSRisk       = 20
	badCertRisk     = 25
	expiringRisk    = 15
	revokedCertRisk = 40
)

// SSLChecker connects to the site and inspects its certificate.
type SSLChecker struct {
	expiryWarning time.Duration
	checkOCSP     bool
	timeout       time.Duration
	client        *http.Client
	rootCAs       *x509.CertPool
	now           func() time.Time
}

// NewSSLChecker creates an SSLChecker. client is used for OCSP requests.
func NewSSLChecker(cfg config.SSLConfig, client *http.Client, timeout time.Duration) *SSLChecker {
	return &SSLChecker{
		expiryWarning: cfg.ExpiryWarning,
		checkOCSP:     cfg.CheckOCSP,
		timeout:       timeout,
		client:        client,
		now:           time.Now,
	}
}

func (c *SSLChecker) Name() string     { return "api_ssl" }
func (c *SSLChecker) Title() string    { return "SSL Certificate" }
func (c *SSLChecker) MaxRisk() float64 { return APIMaxRisk }

// Check implements Checker.
func (c *SSLChecker) Check(ctx context.Context, u *url.URL) (model.Finding, error) {
	if u.Scheme != "https" {
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityWarning, noTLSRisk, APIMaxRisk, c.Title(),
			"No SSL certificate (site uses HTTP, not HTTPS)."), nil
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    c.rootCAs,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		if isCertificateError(err) {
			return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, badCertRisk, APIMaxRisk, c.Title(),
				"Invalid or expired SSL certificate detected. Connection may not be secure."), nil
		}
		return model.Finding{}, err
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return model.Finding{}, fmt.Errorf("unexpected connection type %T", conn)
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return model.Finding{}, errors.New("server presented no certificate")
	}
	leaf := state.PeerCertificates[0]

	if c.checkOCSP {
		if revoked, _ := c.ocspRevoked(ctx, state); revoked {
			return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, revokedCertRisk, APIMaxRisk, c.Title(),
				"The SSL certificate has been revoked by its issuer."), nil
		}
	}

	if remaining := leaf.NotAfter.Sub(c.now()); remaining < c.expiryWarning {
		days := int(remaining.Hours() / 24)
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityWarning, expiringRisk, APIMaxRisk, c.Title(),
			fmt.Sprintf("The SSL certificate expires in %d day(s).", days)), nil
	}
	return model.NewFinding(c.Name(), model.CategoryAPI, model.SeveritySafe, 0, APIMaxRisk, c.Title(),
		"Valid SSL certificate detected. Connection is encrypted."), nil
}

func isCertificateError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		unknownErr  x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		alertErr    tls.AlertError
		recordError tls.RecordHeaderError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &recordError)
}

// ocspRevoked checks the stapled OCSP response, or asks the responder named
// in the certificate. Lookup failures report not revoked.
func (c *SSLChecker) ocspRevoked(ctx context.Context, state tls.ConnectionState) (bool, error) {
	leaf := state.PeerCertificates[0]
	issuer := issuerOf(state)
	if issuer == nil {
		return false, errors.New("issuer certificate not available")
	}

	raw := state.OCSPResponse
	if len(raw) == 0 {
		if len(leaf.OCSPServer) == 0 || c.client == nil {
			return false, nil
		}
		var err error
		raw, err = c.fetchOCSP(ctx, leaf.OCSPServer[0], leaf, issuer)
		if err != nil {
			return false, err
		}
	}

	resp, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return false, err
	}
	return resp.Status == ocsp.Revoked, nil
}

func (c *SSLChecker) fetchOCSP(ctx context.Context, server string, leaf, issuer *x509.Certificate) ([]byte, error) {
	body, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from OCSP responder", ErrUnexpectedStatus, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
}

func issuerOf(state tls.ConnectionState) *x509.Certificate {
	if len(state.VerifiedChains) > 0 && len(state.VerifiedChains[0]) > 1 {
		return state.VerifiedChains[0][1]
	}
	if len(state.PeerCertificates) > 1 {
		return state.PeerCertificates[1]
	}
	return nil
}
