// Command supervisor runs, traces, and replays sessions of the state store.
package main

import (
	"os"

	"github.com/roach88/supervisor/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
