package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/server"
	"github.com/KaramelBytes/habitloom-cli/internal/utils"
	"github.com/KaramelBytes/habitloom-cli/internal/watch"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()

		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		watching := cfg.Watch
		if cmd.Flags().Changed("watch") {
			watching = serveWatch
		}

		// Register new habits before the first request.
		if res, err := svc.Refresh(ctx); err != nil {
			logger.Warn("initial scan failed", zap.Error(err))
		} else {
			logger.Info("initial scan",
				zap.Strings("sources", res.Sources),
				zap.Int("habits", res.Habits),
				zap.Int("days", res.Days))
		}

		if watching {
			w, err := watch.New(utils.ExpandHome(cfg.DataDir), 0, logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			go refreshOnChange(ctx, svc, w)
		}

		h := server.Handler(svc, server.Options{CORSOrigins: cfg.CORSOrigins}, logger)
		fmt.Fprintf(os.Stderr, "✓ Serving dashboard API on http://%s\n", addr)
		return server.Run(ctx, addr, h, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rescan when spreadsheets change (overrides watch)")
}

// refreshOnChange rescans after every settled batch of spreadsheet edits so new columns are
// registered and parse problems are logged as they happen.
func refreshOnChange(ctx context.Context, svc *dashboard.Service, w *watch.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-w.Changes():
			res, err := svc.Refresh(ctx)
			if err != nil {
				logger.Warn("rescan failed", zap.Strings("files", c.Files), zap.Error(err))
				continue
			}
			logger.Info("rescanned after change",
				zap.Strings("files", c.Files),
				zap.Int("habits", res.Habits),
				zap.Int("new_habits", res.Created),
				zap.Int("skipped_rows", res.Skipped))
		}
	}
}
