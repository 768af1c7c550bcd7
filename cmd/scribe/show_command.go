package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the full record for one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonFlag {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(record)
			}

			fmt.Fprintf(out, "Task:      %s\n", record.TaskID)
			fmt.Fprintf(out, "Status:    %s\n", statusLabel(record.Status))
			fmt.Fprintf(out, "URL:       %s\n", record.MediaURL)
			fmt.Fprintf(out, "Sent:      %s\n", formatUnixTime(record.SendTime))
			fmt.Fprintf(out, "Picked up: %s\n", formatUnixTime(record.PickupTime))
			fmt.Fprintf(out, "Finished:  %s\n", formatUnixTime(record.EndTime))
			if record.WorkerID != "" {
				fmt.Fprintf(out, "Worker:    %s\n", record.WorkerID)
			}
			if record.TimeTaken > 0 {
				fmt.Fprintf(out, "Timing:    pickup %s, processing %s, total %s\n",
					formatSeconds(record.TimeToPickup),
					formatSeconds(record.ProcessTime),
					formatSeconds(record.TimeTaken))
			}
			if record.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     %s\n", record.ErrorMessage)
			}
			if record.Result != nil && record.Result.FormattedOutput != "" {
				fmt.Fprintf(out, "\n%s", record.Result.FormattedOutput)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the record as JSON")
	return cmd
}
