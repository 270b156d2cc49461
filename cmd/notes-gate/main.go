package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/marcogenualdo/notes-gate/internal/auth/oidc"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/marcogenualdo/notes-gate/internal/notes"
	"github.com/marcogenualdo/notes-gate/internal/server"
	"github.com/marcogenualdo/notes-gate/internal/session"
	"github.com/marcogenualdo/notes-gate/internal/tokenstore"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "notes-gate",
		Short:   "Notes application behind an OpenID Connect login",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (settings may also come from the environment)")

	return cmd
}

func run(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting notes-gate", "version", version, "environment", cfg.Server.Environment)

	// discovery failures are fatal at startup
	provider, err := oidc.NewDiscoverer(cfg.OIDC).Discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	logger.Info("provider discovered", "issuer", provider.Issuer())

	store, err := tokenstore.New(ctx, cfg.TokenStore)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}
	logger.Info("token store initialized", "type", cfg.TokenStore.Type)

	codec, err := session.NewCodec(cfg.Session.Secret)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to create session codec: %w", err)
	}

	srv, err := server.New(*cfg, store, provider, codec, notes.NewStore(), logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
