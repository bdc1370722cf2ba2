package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/foodflow/foodflow/internal/integration"
)

var detectPublish bool

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection cycle and print the decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		now := time.Now().UTC()
		if detectPublish {
			sched, store, err := rt.integrationScheduler()
			if err != nil {
				return err
			}
			if err := sched.RunCycle(ctx, now); err != nil {
				return err
			}
			artifact, err := store.Load()
			if err != nil {
				return err
			}
			return printJSON(artifact)
		}

		detector, err := rt.detector()
		if err != nil {
			return err
		}
		engine, err := rt.engine()
		if err != nil {
			return err
		}
		snapshot, err := rt.repo.GetSnapshot(ctx)
		if err != nil {
			return err
		}
		flags, err := detector.Detect(ctx, snapshot, now)
		if err != nil {
			return err
		}
		decisions := integration.Enrich(snapshot, engine.Decide(flags))
		return printJSON(decisions)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	detectCmd.Flags().BoolVar(&detectPublish, "publish", false, "publish the flagged artifact instead of printing decisions only")
	rootCmd.AddCommand(detectCmd)
}
