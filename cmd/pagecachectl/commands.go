package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/app"
	"github.com/shaibs3/pagecache/internal/enumerator"
	"github.com/shaibs3/pagecache/internal/scheduler"
)

var (
	refreshMode      string
	refreshBatchSize int
	refreshOffset    int
	refreshAll       bool
	refreshInfo      bool
	pathsMode        string
)

func init() {
	refreshCmd.Flags().StringVarP(&refreshMode, "mode", "m", "full", "Enumeration mode: full, recent or newsWindow")
	refreshCmd.Flags().IntVarP(&refreshBatchSize, "batch-size", "b", 50, "Paths per batch")
	refreshCmd.Flags().IntVarP(&refreshOffset, "offset", "o", 0, "Offset of the first path to render")
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "Keep running batches until none remain")
	refreshCmd.Flags().BoolVar(&refreshInfo, "info", false, "Only print the path count and recommended batch count")

	pathsCmd.Flags().StringVarP(&pathsMode, "mode", "m", "full", "Enumeration mode: full, recent or newsWindow")
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Render and cache one batch of paths, or every batch with --all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := enumerator.ParseMode(refreshMode)
		if err != nil {
			return err
		}
		return withComponents(cmd, func(ctx context.Context, c *app.Components, log *zap.Logger) error {
			out := cmd.OutOrStdout()
			switch {
			case refreshInfo:
				plan, err := c.Scheduler.Info(ctx, mode, refreshBatchSize)
				if err != nil {
					return err
				}
				return printJSON(out, plan)
			case refreshAll:
				var successful, failed int
				err := c.Scheduler.RunAll(ctx, mode, refreshBatchSize, refreshOffset, func(r scheduler.Report) {
					successful += r.Successful
					failed += r.Failed
					fmt.Fprintf(out, "batch at %d: %d ok, %d failed (%d total paths)\n", r.BatchStart, r.Successful, r.Failed, r.Total)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "done: %d ok, %d failed\n", successful, failed)
				return nil
			default:
				report, err := c.Scheduler.RunBatch(ctx, mode, refreshBatchSize, refreshOffset)
				if err != nil {
					return err
				}
				return printJSON(out, report)
			}
		})
	},
}

var renderCmd = &cobra.Command{
	Use:   "render PATH",
	Short: "Render and cache a single path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("path must start with /, got %q", path)
		}
		return withComponents(cmd, func(ctx context.Context, c *app.Components, log *zap.Logger) error {
			out := c.Unit.RenderAndStore(ctx, path)
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("render of %s failed", path)
			}
			return nil
		})
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Delete cache pages past their expiry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *app.Components, log *zap.Logger) error {
			res, err := c.Maintainer.ExpireStale(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *app.Components, log *zap.Logger) error {
			st, err := c.Maintainer.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		})
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the enumerated paths of a mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := enumerator.ParseMode(pathsMode)
		if err != nil {
			return err
		}
		return withComponents(cmd, func(ctx context.Context, c *app.Components, log *zap.Logger) error {
			res, err := c.Enumerator.Enumerate(ctx, mode)
			if err != nil {
				return err
			}
			for _, name := range res.Failed {
				log.Warn("category skipped", zap.String("category", name))
			}
			out := cmd.OutOrStdout()
			for _, p := range res.Paths {
				fmt.Fprintln(out, p)
			}
			if res.TotalFailure() {
				return fmt.Errorf("%w: %w", scheduler.ErrEnumeration, res.Err)
			}
			return nil
		})
	},
}
