// txmonitor-cli is a thin operator shell around the monitor's durable
// store, built the way cmd/lncli/main.go builds its cli.App: a
// cli.NewApp() with a flat list of cli.Command entries, each parsing its
// own positional arguments.
//
// Unlike lncli, which talks to a running daemon over gRPC, this tool opens
// the same bbolt store the daemon uses directly — the store (not a network
// RPC surface) is this repo's single source of truth, so a short-lived CLI
// invocation reads and writes it exactly like the daemon's next tick would.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[txmonitor-cli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "txmonitor-cli"
	app.Usage = "control plane for the Bitcoin transaction monitor"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "configfile",
			Value: "txmonitor.yaml",
			Usage: "path to the monitor's YAML config file",
		},
	}
	app.Commands = []cli.Command{
		statusCommand,
		monitorTxCommand,
		monitorUtxoCommand,
		cancelCommand,
		ackCommand,
		resumeAfterReorgCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
