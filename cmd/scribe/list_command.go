package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/taskstore"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := taskstore.ParseStatus(statusFlag)
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListByStatus(cmd.Context(), status, limitFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "no %s tasks\n", status)
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.TaskID,
					statusLabel(record.Status),
					truncate(record.MediaURL, 60),
					formatUnixTime(record.SendTime),
					formatSeconds(record.TimeTaken),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TASK", "STATUS", "URL", "SENT", "TOOK"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", string(taskstore.StatusSent), "Status to list (sent, started, completed, failed)")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum rows (0 for all)")
	return cmd
}
