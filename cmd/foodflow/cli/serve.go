package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/foodflow/foodflow/internal/app"
	"github.com/foodflow/foodflow/internal/integration"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator, sync loop and reporting API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		simSched, err := rt.simScheduler()
		if err != nil {
			return err
		}
		syncSched, store, err := rt.integrationScheduler()
		if err != nil {
			return err
		}

		router := app.NewRouter(app.RouterParams{
			Logger:         rt.logger,
			Config:         rt.cfg,
			FlaggedHandler: integration.NewHandler(store),
			Metrics:        rt.metrics,
		})
		server := &http.Server{
			Addr:         rt.cfg.AppAddr,
			Handler:      router,
			ReadTimeout:  rt.cfg.AppReadTimeout,
			WriteTimeout: rt.cfg.AppWriteTimeout,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rt.logger.Info("http server listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			err := simSched.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			err := syncSched.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		rt.logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
