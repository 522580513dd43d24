package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PriceImport/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List recent import runs",
		Example: `  priceimport history --limit 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}
			ctx := cmd.Context()
			stores, err := store.Open(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			entries, err := stores.History.RecentImports(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println("No imports recorded yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tFILE\tBEHAVIOR\tSTATUS\tROWS\tUPDATED\tCREATED\tERRORS\tID")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					e.StartedAt.Local().Format(time.DateTime), e.FileName, e.Behavior, e.Status,
					e.RowsProcessed, e.ItemsUpdated, e.ItemsCreated, e.ErrorCount, e.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
