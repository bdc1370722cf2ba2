package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/foodflow/foodflow/internal/app"
	"github.com/foodflow/foodflow/jobs"
)

var enqueueCmd = &cobra.Command{
	Use:       "enqueue {tick|cycle}",
	Short:     "Submit a one-shot task to the worker queue",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"tick", "cycle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		logger := app.NewLogger(cfg)

		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer client.Close()

		var info *asynq.TaskInfo
		switch args[0] {
		case "tick":
			info, err = client.EnqueueSimTick(ctx, jobs.TickPayload{At: time.Now().UTC()})
		case "cycle":
			info, err = client.EnqueueIntegrationCycle(ctx)
		default:
			return fmt.Errorf("unknown task %q", args[0])
		}
		if err != nil {
			return err
		}
		logger.Info("task enqueued",
			slog.String("id", info.ID),
			slog.String("type", info.Type),
			slog.String("queue", info.Queue),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
