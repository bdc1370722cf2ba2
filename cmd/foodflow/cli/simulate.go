package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var simulateOnce bool

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulator jobs against the inventory store",
	Long:  "Run the simulation scheduler. With --once a single tick executes and the command exits; otherwise the loop runs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		sched, err := rt.simScheduler()
		if err != nil {
			return err
		}

		if simulateOnce {
			emitted, err := sched.Tick(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			rt.logger.Info("tick complete", slog.Int("events", len(emitted)))
			return nil
		}

		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateOnce, "once", false, "execute a single tick and exit")
	rootCmd.AddCommand(simulateCmd)
}
