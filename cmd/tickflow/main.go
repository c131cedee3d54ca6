// Command tickflow runs coroutine scenarios on a ticked scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/vnykmshr/tickflow/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
