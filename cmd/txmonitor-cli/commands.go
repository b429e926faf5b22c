package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/urfave/cli"

	"github.com/chainwatch/btcmonitor/config"
	"github.com/chainwatch/btcmonitor/engine"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// openStore loads config and opens the store the daemon also uses, wiring
// up an engine.Monitor with no indexer — every command here only touches
// store-backed state (registration, cancellation, news), never tick() or
// is_ready(), so no live indexer connection is needed.
func openStore(ctx *cli.Context) (*engine.Monitor, *store.Store, error) {
	cfg, err := config.Load(ctx.GlobalString("configfile"))
	if err != nil {
		return nil, nil, fmt.Errorf("config: %v", err)
	}
	federations, err := cfg.Federations()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %v", err)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %v", err)
	}
	m := engine.New(st, nil, engine.Config{
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		ReorgWindow:           cfg.ReorgWindow,
		Federations:           federations,
		NewBlockEmitOnReplay:  cfg.NewBlockEmitOnReplay,
	})
	return m, st, nil
}

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "print the monitor's last processed height and pending news count",
	Action: func(ctx *cli.Context) error {
		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		height, err := m.GetMonitorHeight()
		if err != nil {
			return err
		}
		news, err := m.GetNews()
		if err != nil {
			return err
		}
		fmt.Printf("height: %d\n", height)
		fmt.Printf("pending news: %d\n", len(news))
		return nil
	},
}

var monitorTxCommand = cli.Command{
	Name:      "monitor-tx",
	Usage:     "register a Tx monitor",
	ArgsUsage: "<txid> [context-tag]",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return cli.NewExitError("monitor-tx requires a txid", 1)
		}
		txid, err := chainhash.NewHashFromStr(ctx.Args().Get(0))
		if err != nil {
			return fmt.Errorf("bad txid: %v", err)
		}
		tag := ctx.Args().Get(1)

		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return m.Monitor(monitor.NewTxSpec(*txid, tag))
	},
}

var monitorUtxoCommand = cli.Command{
	Name:      "monitor-utxo",
	Usage:     "register a Utxo monitor",
	ArgsUsage: "<txid>:<index> [context-tag]",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return cli.NewExitError("monitor-utxo requires <txid>:<index>", 1)
		}
		op, err := parseOutpoint(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		tag := ctx.Args().Get(1)

		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return m.Monitor(monitor.NewUtxoSpec(op, tag))
	},
}

var cancelCommand = cli.Command{
	Name:      "cancel",
	Usage:     "retire a monitor",
	ArgsUsage: "<kind> <primary-key>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			return cli.NewExitError("cancel requires <kind> <primary-key>", 1)
		}
		kind, err := parseKind(ctx.Args().Get(0))
		if err != nil {
			return err
		}

		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return m.Cancel(kind, ctx.Args().Get(1))
	},
}

var ackCommand = cli.Command{
	Name:      "ack",
	Usage:     "acknowledge one or more news ids",
	ArgsUsage: "<news-id> [news-id...]",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return cli.NewExitError("ack requires at least one news id", 1)
		}

		ids := make([]uint64, 0, ctx.NArg())
		for _, raw := range ctx.Args() {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("bad news id %q: %v", raw, err)
			}
			ids = append(ids, id)
		}

		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return m.AckNews(ids)
	},
}

var resumeAfterReorgCommand = cli.Command{
	Name:  "resume-after-reorg",
	Usage: "clear the deep-reorg fault sentinel after widening reorg_window in config",
	Action: func(ctx *cli.Context) error {
		m, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return m.ClearDeepReorgFault()
	},
}

func parseOutpoint(s string) (wire.OutPoint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return wire.OutPoint{}, fmt.Errorf("outpoint must be <txid>:<index>")
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("bad txid: %v", err)
	}
	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("bad output index: %v", err)
	}
	return wire.OutPoint{Hash: *hash, Index: uint32(index)}, nil
}

func parseKind(s string) (monitor.Kind, error) {
	for k := monitor.KindTx; k <= monitor.KindNewBlock; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown monitor kind %q", s)
}
