// Command tabsync runs multi-tab sync scenarios, the websocket relay and
// interactive tabs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tabsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
