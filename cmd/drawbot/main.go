// Command drawbot runs and talks to drawbot hubs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ssured/drawbot/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
