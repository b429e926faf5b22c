package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"

	"github.com/chainwatch/btcmonitor/config"
	"github.com/chainwatch/btcmonitor/engine"
	"github.com/chainwatch/btcmonitor/indexer/btcdindexer"
	"github.com/chainwatch/btcmonitor/logging"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/pegin"
	"github.com/chainwatch/btcmonitor/store"
)

// tickInterval is how often the daemon calls tick() while running. Not yet
// configurable; spec.md leaves the driving cadence up to the embedder.
const tickInterval = 10 * time.Second

// runCommand implements `txmonitord run`.
type runCommand struct {
	opts *options
}

func (c *runCommand) Execute(_ []string) error {
	_, m, st, idx, err := openMonitor(c.opts.ConfigFile)
	if err != nil {
		return err
	}
	defer st.Close()
	defer idx.Shutdown()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Infof("txmonitord started, ticking every %s", tickInterval)

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
			err := m.Tick(ctx)
			cancel()
			if err != nil {
				if monErr, ok := err.(*monitor.Error); ok && monErr.Kind == monitor.ErrKindBusy {
					continue
				}
				log.Errorf("tick failed: %v", err)
				if monErr, ok := err.(*monitor.Error); ok && monErr.Kind == monitor.ErrKindDeepReorg {
					lastExitCode = exitEngineError
					return nil
				}
			}
		case sig := <-sigCh:
			log.Infof("received %s, shutting down", sig)
			lastExitCode = exitOK
			return nil
		}
	}
}

// statusCommand implements `txmonitord status`.
type statusCommand struct {
	opts *options
}

func (c *statusCommand) Execute(_ []string) error {
	_, m, st, idx, err := openMonitor(c.opts.ConfigFile)
	if err != nil {
		return err
	}
	defer st.Close()
	defer idx.Shutdown()

	height, err := m.GetMonitorHeight()
	if err != nil {
		lastExitCode = exitStoreError
		return err
	}
	news, err := m.GetNews()
	if err != nil {
		lastExitCode = exitStoreError
		return err
	}
	ready, err := m.IsReady()
	if err != nil {
		lastExitCode = exitIndexerError
		return err
	}

	fmt.Printf("height: %d\n", height)
	fmt.Printf("ready: %v\n", ready)
	fmt.Printf("pending news: %d\n", len(news))
	return nil
}

// openMonitor loads configuration and wires up the store, indexer, and
// engine, exactly the construction sequence spec.md §6 describes: config ->
// store -> indexer -> monitor.
func openMonitor(configFile string) (*config.Config, *engine.Monitor, *store.Store, *btcdindexer.Indexer, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		lastExitCode = exitConfigError
		return nil, nil, nil, nil, fmt.Errorf("config: %v", err)
	}

	if err := logging.InitLogRotator(cfg.Store.Path+".log", 10); err != nil {
		lastExitCode = exitConfigError
		return nil, nil, nil, nil, fmt.Errorf("logging: %v", err)
	}
	setSubsystemLoggers()

	federations, err := cfg.Federations()
	if err != nil {
		lastExitCode = exitConfigError
		return nil, nil, nil, nil, fmt.Errorf("config: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		lastExitCode = exitStoreError
		return nil, nil, nil, nil, fmt.Errorf("store: %v", err)
	}

	user, pass := splitAuth(cfg.Indexer.Auth)
	idx, err := btcdindexer.New(&rpcclient.ConnConfig{
		Host: cfg.Indexer.URL,
		User: user,
		Pass: pass,
	})
	if err != nil {
		st.Close()
		lastExitCode = exitIndexerError
		return nil, nil, nil, nil, fmt.Errorf("indexer: %v", err)
	}

	m := engine.New(st, idx, engine.Config{
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		ReorgWindow:           cfg.ReorgWindow,
		Federations:           federations,
		NewBlockEmitOnReplay:  cfg.NewBlockEmitOnReplay,
		IndexerRetries:        cfg.Indexer.Retries,
	})

	if height, err := idx.BestHeight(); err == nil {
		if hash, err := idx.GetBlock(height); err == nil {
			_ = m.Bootstrap(height, hash.Hash)
		}
	}

	return cfg, m, st, idx, nil
}

func splitAuth(auth string) (user, pass string) {
	parts := strings.SplitN(auth, ":", 2)
	if len(parts) != 2 {
		return auth, ""
	}
	return parts[0], parts[1]
}

var log = btclog.Disabled

func setSubsystemLoggers() {
	log = logging.NewSubLogger("TMTD")
	store.UseLogger(logging.NewSubLogger("STOR"))
	engine.UseLogger(logging.NewSubLogger("ENGN"))
	pegin.UseLogger(logging.NewSubLogger("PGIN"))
	btcdindexer.UseLogger(logging.NewSubLogger("BIDX"))
}
