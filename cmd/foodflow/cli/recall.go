package cli

import (
	"github.com/spf13/cobra"

	"github.com/foodflow/foodflow/internal/inventory"
)

var recallCmd = &cobra.Command{
	Use:   "recall <product> <lot>",
	Short: "Quarantine a lot's sellable stock and record the recall event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := inventory.NewService(rt.repo, rt.sink, rt.logger)
		evt, err := svc.QuarantineLot(ctx, args[0], args[1], "cli")
		if err != nil {
			return err
		}
		return printJSON(evt)
	},
}

func init() {
	rootCmd.AddCommand(recallCmd)
}
