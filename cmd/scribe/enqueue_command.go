package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/sender"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var webhookFlag string

	cmd := &cobra.Command{
		Use:   "enqueue <video-url>",
		Short: "Queue a video for transcription and action point extraction",
		Args:  cobra.ExactArgs(1),
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

			client := sender.NewClient(cfg)
			defer client.Close()

			taskID, err := sender.New(cfg, store, client, nil).Send(cmd.Context(), args[0], webhookFlag)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), taskID)
			return nil
		},
	}

	cmd.Flags().StringVar(&webhookFlag, "webhook", "", "URL notified when the task finishes")
	return cmd
}
