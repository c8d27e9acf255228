// Command remoteq serves, sends and inspects portable remote queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/remoteq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
