package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/preflight"
	"scribe/internal/taskstore"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the store, queue backlog, and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, 8)

			storeResult := preflight.CheckStore(cmd.Context(), store)
			rows = append(rows, []string{storeResult.Name, passLabel(storeResult.Passed), storeResult.Detail})

			dirResult := preflight.CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir)
			rows = append(rows, []string{dirResult.Name, passLabel(dirResult.Passed), dirResult.Detail})

			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				label := passLabel(status.Available)
				if !status.Available && status.Optional {
					label = "SKIP"
				}
				rows = append(rows, []string{status.Name, label, status.Detail})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"CHECK", "STATE", "DETAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTasks: %d sent, %d started, %d completed, %d failed\n",
				stats[taskstore.StatusSent],
				stats[taskstore.StatusStarted],
				stats[taskstore.StatusCompleted],
				stats[taskstore.StatusFailed])
			return nil
		},
	}
}

func passLabel(passed bool) string {
	if passed {
		return "OK"
	}
	return "FAIL"
}
