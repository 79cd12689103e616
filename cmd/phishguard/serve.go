package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/phishguard/internal/config"
	applog "github.com/nao1215/phishguard/internal/log"
	"github.com/nao1215/phishguard/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP and WebSocket",
		Long: `Serve answers predictPhishing and analyzeUrl messages over HTTP.

Endpoints:
  POST /v1/analyze        one request, one response
  GET  /v1/ws             WebSocket; each text frame is one request
  GET  /v1/reports        stored reports (?url=&limit=)
  GET  /v1/reports/{id}   one stored report
  GET  /healthz           liveness

Logs are written to stderr as JSON.

Examples:
  phishguard serve
  phishguard serve --addr :8080 --no-db`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultServerAddr,
		"Listen address")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for fetching one page")
	cmd.Flags().String("proxy", "",
		"Fetch pages through this SOCKS5 proxy (host:port), e.g. Tor at 127.0.0.1:9050")
	cmd.Flags().Bool("browser", false,
		"Render pages in headless Chrome before analysis")
	cmd.Flags().Bool("no-db", false,
		"Do not store reports in the database")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.ServerAddr, err = cmd.Flags().GetString("addr"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.UseBrowser, err = cmd.Flags().GetBool("browser"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
		return err
	}
	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()
	cfg.DatabaseURL = os.Getenv(config.EnvDatabaseURL)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)
	if err := loadScoring(cfg, logger); err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	svc, err := newServices(cfg, st, logger)
	if err != nil {
		return err
	}
	svc.startSweepers(ctx, cfg)

	opts := []server.Option{server.WithLogger(logger)}
	if st != nil {
		opts = append(opts, server.WithStore(st))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "phishguard listening on %s\n", cfg.ServerAddr)
	return server.New(svc.analyzer, opts...).ListenAndServe(ctx, cfg.ServerAddr)
}
