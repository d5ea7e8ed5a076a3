package cmd

import (
	"github.com/spf13/cobra"

	"github.com/r58io/core-service/internal/apiserver"
)

func newStartSessionCmd() *cobra.Command {
	var cameras []string
	var name string
	var idempotencyKey string

	startCmd := &cobra.Command{
		Use:   "start-session",
		Short: "Start a recording session across one or more cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.close()

			params := apiserver.StartSessionParams{
				IdempotencyKey: idempotencyKey,
				Cameras:        cameras,
			}
			if name != "" {
				params.Name = &name
			}

			result, err := c.call("start_session", params)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	startCmd.Flags().StringSliceVar(&cameras, "camera", nil, "camera ID to include (repeatable)")
	startCmd.Flags().StringVar(&name, "name", "", "optional human-readable session name")
	startCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "idempotency key for safe retry")

	return startCmd
}

func newStopSessionCmd() *cobra.Command {
	var sessionID string

	stopCmd := &cobra.Command{
		Use:   "stop-session",
		Short: "Stop the active recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.close()

			result, err := c.call("stop_session", apiserver.StopSessionParams{SessionID: sessionID})
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	stopCmd.Flags().StringVar(&sessionID, "session-id", "", "session ID to stop (omit to stop whatever is active)")

	return stopCmd
}
