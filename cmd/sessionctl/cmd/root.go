package cmd

import (
	"github.com/spf13/cobra"
)

var (
	addr   string
	token  string
	output string
)

// NewRootCmd returns sessionctl's root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "sessionctl — drive a core service's control API from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&addr, "addr", "ws://127.0.0.1:8002/ws", "control API WebSocket address")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT bearer token for authenticate")
	rootCmd.PersistentFlags().StringVar(&output, "output", "json", "output format: json|text")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStartSessionCmd())
	rootCmd.AddCommand(newStopSessionCmd())
	rootCmd.AddCommand(newStartCameraCmd())
	rootCmd.AddCommand(newStopCameraCmd())

	return rootCmd
}
