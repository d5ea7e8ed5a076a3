// Command sessionctl is a small CLI for driving a running core service's
// control API over its WebSocket protocol, for manual session start/stop
// and status checks during bring-up and field diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/r58io/core-service/cmd/sessionctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
