package cli

import (
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print current per-product inventory totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		snapshot, err := rt.repo.GetSnapshot(ctx)
		if err != nil {
			return err
		}
		return printJSON(snapshot.ProductTotals())
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
