package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andy6609/roomchat/internal/audit"
	"github.com/andy6609/roomchat/internal/chat"
	"github.com/andy6609/roomchat/internal/config"
	"github.com/andy6609/roomchat/internal/eventlog"
	"github.com/andy6609/roomchat/internal/httpapi"
)

var (
	flagHost           string
	flagPort           int
	flagHTTPAddr       string
	flagLogDir         string
	flagAuditDB        string
	flagLogLevel       string
	flagMaxConnections int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Start the TCP chat listener and, unless --http is empty, the HTTP
endpoint serving /healthz, /metrics, /api/rooms, /api/sessions and /ws.

Settings are resolved from defaults, then the config file, then .env and
CHAT_* environment variables, then explicitly set flags.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagHost, "host", "", "Chat listen host")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Chat listen port")
	serveCmd.Flags().StringVar(&flagHTTPAddr, "http", "", "HTTP listen address (empty string disables)")
	serveCmd.Flags().StringVar(&flagLogDir, "log-dir", "", "Directory for per-run event journals")
	serveCmd.Flags().StringVar(&flagAuditDB, "audit-db", "", "Path to SQLite audit database")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&flagMaxConnections, "max-connections", 0, "Maximum concurrent sessions (0 = unlimited)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)

	var sinks []eventlog.Sink
	if cfg.Log.Dir != "" {
		fileSink, err := eventlog.OpenFile(cfg.Log.Dir, time.Now())
		if err != nil {
			logger.Warn("event journal disabled", "error", err)
		} else {
			defer fileSink.Close()
			logger.Info("event journal", "path", fileSink.Path())
			sinks = append(sinks, fileSink)
		}
	}
	if cfg.Log.AuditDB != "" {
		store, err := audit.Open(cfg.Log.AuditDB)
		if err != nil {
			logger.Warn("audit store disabled", "error", err)
		} else {
			defer store.Close()
			sinks = append(sinks, store)
		}
	}

	srv := chat.NewServer(chat.Options{
		Addr:           cfg.Address(),
		MaxConnections: cfg.Server.MaxConnections,
		OutboundBuffer: cfg.Server.OutboundBuffer,
		RegistryBuffer: cfg.Server.RegistryBuffer,
		MaxLineBytes:   cfg.Server.MaxLineBytes,
		Logger:         logger,
		Journal:        eventlog.Multi(sinks...),
	})
	if err := srv.Start(); err != nil {
		return err
	}

	var httpSrv *http.Server
	if cfg.HTTP.Addr != "" {
		router := httpapi.NewRouter(srv, httpapi.Config{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestsPerMin: cfg.HTTP.RequestsPerMin,
			MaxLineBytes:   cfg.Server.MaxLineBytes,
		}, logger)
		httpSrv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", "addr", cfg.HTTP.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}
	srv.Stop()
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = flagPort
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = flagHTTPAddr
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = flagLogDir
	}
	if flags.Changed("audit-db") {
		cfg.Log.AuditDB = flagAuditDB
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("max-connections") {
		cfg.Server.MaxConnections = flagMaxConnections
	}
}
