package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/app"
	"github.com/shaibs3/pagecache/internal/config"
	"github.com/shaibs3/pagecache/internal/logger"
)

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.AddCommand(refreshCmd, renderCmd, expireCmd, statsCmd, pathsCmd)
}

var rootCmd = &cobra.Command{
	Use:           "pagecachectl",
	Short:         "Operate the page cache from the command line",
	Long:          "pagecachectl runs the page-cache pipeline in-process, using the same environment configuration as the server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// withComponents loads configuration, builds the pipeline and runs fn with a signal-aware context
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *app.Components, log *zap.Logger) error) error {
	bootLogger, err := logger.NewLogger("production", "warn")
	if err != nil {
		return err
	}
	cfg, err := config.Load(bootLogger)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	components, err := app.NewComponents(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = components.Close()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, components, log)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
