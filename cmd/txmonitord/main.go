// txmonitord is the Bitcoin transaction monitor daemon: it owns the store
// and the indexer connection and drives tick() on a fixed interval until
// interrupted. Commands are parsed the way cmd/lnd/main.go overlays flags
// onto its daemon, via jessevdk/go-flags rather than urfave/cli — the CLI
// client in cmd/txmonitor-cli keeps the cli.App shell, this binary doesn't
// need one.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

// Exit codes, per the monitor's CLI surface: 0 success, the rest distinguish
// why the daemon could not run so an operator's process supervisor can tell
// a config mistake from a store fault from an indexer fault.
const (
	exitOK           = 0
	exitUsage        = 1
	exitConfigError  = 2
	exitStoreError   = 3
	exitIndexerError = 4
	exitEngineError  = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("run", "Run the monitor daemon", "Open the store and indexer and tick() on an interval until interrupted.", &runCommand{opts: &opts})
	parser.AddCommand("status", "Print the monitor's current state", "Print the last processed height and pending news count.", &statusCommand{opts: &opts})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		if lastExitCode != exitOK {
			return lastExitCode
		}
		return exitUsage
	}
	return lastExitCode
}

// options holds the flags shared by every subcommand.
type options struct {
	ConfigFile string `long:"configfile" description:"Path to the monitor's YAML config file" default:"txmonitor.yaml"`
}

// lastExitCode is set by whichever subcommand's Execute ran, since
// go-flags' Command.Execute only returns an error, not an exit code.
var lastExitCode = exitOK
