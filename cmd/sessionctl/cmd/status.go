package cmd

import "github.com/spf13/cobra"

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report camera and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.close()

			result, err := c.call("status", nil)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}
}
