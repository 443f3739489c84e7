package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mschulkind/context-portal/internal/config"
	"github.com/mschulkind/context-portal/internal/httpfront"
	"github.com/mschulkind/context-portal/internal/server"
	"github.com/mschulkind/context-portal/internal/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "conport",
		Short:        "Context Portal: per-workspace project memory over MCP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(cmd.Context(), cfg, log)
		},
	}

	def := config.Default()
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML config file")
	f.String("mode", def.Mode, "Transport mode: stdio or http")
	f.String("port", def.Port, "HTTP port (only used with --mode http)")
	f.String("db-path", def.DBPath, "Store location override; relative paths resolve against the workspace")
	f.String("workspace-id", def.WorkspaceID, "Default workspace identity")
	f.Bool("auto-detect", def.AutoDetect, "Detect the workspace when a call does not name one")
	f.Bool("require-indicator", def.RequireIndicator, "Fail instead of falling back to the start directory")
	f.String("start-dir", def.StartDir, "Where workspace detection starts (default: working directory)")
	f.String("log-level", def.LogLevel, "debug, info, warn or error")
	f.String("bearer-token", def.BearerToken, "Token required on http requests (prefer CONPORT_BEARER_TOKEN)")
	f.String("resource-url", def.ResourceURL, "Public URL of the http endpoint")
	f.String("auth-server-url", def.AuthServerURL, "Authorization server advertised in resource metadata")

	f.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(fl.Name, "-", "_"), fl)
	})
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	// stdout carries the stdio transport.
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sess := session.New(cfg, log.Named("session"))
	defer sess.Close()

	srv := server.New(sess, log)

	switch cfg.Mode {
	case "stdio":
		log.Info("context portal starting", zap.String("mode", "stdio"))
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server: %w", err)
		}
	case "http":
		addr := ":" + cfg.Port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		httpSrv := &http.Server{
			Addr:    addr,
			Handler: httpfront.Handler(handler, httpfront.Options{
				BearerToken:   cfg.BearerToken,
				ResourceURL:   cfg.ResourceURL,
				AuthServerURL: cfg.AuthServerURL,
			}, log.Named("http")),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			<-ctx.Done()
			httpSrv.Shutdown(context.Background())
		}()
		if cfg.BearerToken == "" {
			log.Warn("http endpoint has no bearer token")
		}
		log.Info("context portal listening", zap.String("mode", "http"), zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode: %s (use stdio or http)", cfg.Mode)
	}
	return nil
}
