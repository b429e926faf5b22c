// Package engine is the Monitor Facade: it owns the single-writer tick()
// loop that drives the Detection Engine, Confirmation Tracker, Reorg
// Resolver, and News Queue against the durable store, and exposes the
// public MonitorApi surface used by callers (spec.md §6).
//
// The tick-reentrancy guard mirrors the teacher's atomic start/stop-once
// idiom in chainntnfs/btcdnotify/btcd.go's BtcdNotifier.Start/Stop, widened
// from a single start/stop transition to a per-tick TryLock/unlock.
package engine

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/pegin"
	"github.com/chainwatch/btcmonitor/store"
)

// reorgWindowMargin is the extra depth, beyond max(reorg window, threshold),
// the RecentChain index keeps on top of what finalization strictly needs —
// resolving spec.md §9's Open Question on the exact retention size.
const reorgWindowMargin = 10

// Config bundles the tunables spec.md §6 surfaces through the YAML config:
// confirmation threshold, reorg safety window, configured peg-in
// federations, and the new_block_emit_on_replay flag.
type Config struct {
	ConfirmationThreshold uint32
	ReorgWindow           uint32
	Federations           map[string]pegin.Federation
	NewBlockEmitOnReplay  bool
	IndexerRetries        int
}

// Monitor is the concrete MonitorApi implementation.
type Monitor struct {
	cfg   Config
	store *store.Store
	idx   indexer.Port

	tickMu  sync.Mutex
	limiter *rate.Limiter
}

// New constructs a Monitor. The store and indexer are both expected to
// already be open/connected; Monitor never manages their lifecycle.
func New(st *store.Store, idx indexer.Port, cfg Config) *Monitor {
	if cfg.IndexerRetries <= 0 {
		cfg.IndexerRetries = 3
	}
	return &Monitor{
		cfg:   cfg,
		store: st,
		idx:   idx,
		// One retry attempt per 200ms at most, matching the bounded
		// backoff spec.md §5 asks for between indexer RPC attempts.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// chainWindow returns W, the number of trailing heights the RecentChain
// index retains: max(reorg window, confirmation threshold) + margin.
func (m *Monitor) chainWindow() uint32 {
	w := m.cfg.ConfirmationThreshold
	if m.cfg.ReorgWindow > w {
		w = m.cfg.ReorgWindow
	}
	return w + reorgWindowMargin
}

// GetConfirmationThreshold implements MonitorApi.
func (m *Monitor) GetConfirmationThreshold() uint32 {
	return m.cfg.ConfirmationThreshold
}

// IsReady implements MonitorApi: the monitor is ready once the underlying
// indexer reports itself reachable and caught up.
func (m *Monitor) IsReady() (bool, error) {
	ready, err := m.idx.Ready()
	if err != nil {
		return false, monitor.WrapError(monitor.ErrKindIndexerTransient, err)
	}
	return ready, nil
}

// GetMonitorHeight implements MonitorApi: the last height the monitor has
// fully processed.
func (m *Monitor) GetMonitorHeight() (uint64, error) {
	var cursor uint64
	err := m.store.View(func(stx *store.Tx) error {
		cursor = stx.Cursor()
		return nil
	})
	if err != nil {
		return 0, monitor.WrapError(monitor.ErrKindStore, err)
	}
	return cursor, nil
}

// Bootstrap seeds the store's cursor and RecentChain index at (height,
// hash) without replaying any history, for a brand-new store that should
// start watching from the chain's current tip rather than backfilling from
// genesis. It is a no-op once a cursor has already been recorded, matching
// the teacher's own NewTxConfNotifier(startHeight, ...) constructor
// convention of taking an explicit starting point rather than discovering
// one.
func (m *Monitor) Bootstrap(height uint32, hash chainhash.Hash) error {
	return m.store.Update(func(stx *store.Tx) error {
		if _, ok := stx.ChainTop(); ok {
			return nil
		}
		if err := stx.SetCursor(uint64(height)); err != nil {
			return err
		}
		return stx.PutChainHash(height, hash)
	})
}

// ClearDeepReorgFault is the operator's recovery action after a Tick has
// halted with ErrKindDeepReorg: having widened ReorgWindow in config, the
// operator calls this to drop the persisted fault sentinel so the next Tick
// resumes normal reconciliation instead of fast-failing. It does not touch
// the cursor or RecentChain index — those were left exactly where the
// divergence was first detected, so the next Tick re-runs findCommonAncestor
// against the now-wider window.
func (m *Monitor) ClearDeepReorgFault() error {
	return m.store.Update(func(stx *store.Tx) error {
		return stx.ClearDeepReorgFault()
	})
}

// emitNews allocates the next news id and persists a news item, updating
// the owning monitor's LastEventHeight. Every Detection Engine /
// Confirmation Tracker / Reorg Resolver code path that produces a news item
// goes through this one function.
func emitNews(stx *store.Tx, kind monitor.NewsKind, spec monitor.Spec, height uint32, payload interface{}) error {
	id, err := stx.NextNewsID()
	if err != nil {
		return err
	}
	item := monitor.NewsItem{
		NewsID:          id,
		Kind:            kind,
		SpecKey:         spec.Key(),
		ContextTag:      spec.ContextTag,
		CreatedAtHeight: height,
		Payload:         payload,
	}
	if err := stx.PutNews(item); err != nil {
		return err
	}
	_, state, found, err := stx.GetMonitor(spec.Kind, spec.PrimaryKey())
	if err != nil {
		return err
	}
	if found {
		state.LastEventHeight = height
		if err := stx.PutMonitor(spec, state); err != nil {
			return err
		}
	}
	log.Debugf("emitted %s news %d for %s at height %d", kind, id, spec.Key(), height)
	return nil
}

// lookupLiveSpec resolves a spec_key back to its Spec/State, per
// monitor.ParseKey, and reports whether it is still live. Reverse indices
// and news items only ever carry the key, never a pointer, so every
// emission path needs this to recover ContextTag.
func lookupLiveSpec(stx *store.Tx, specKey string) (monitor.Spec, monitor.State, bool, error) {
	kind, pk, err := monitor.ParseKey(specKey)
	if err != nil {
		return monitor.Spec{}, monitor.State{}, false, fmt.Errorf("engine: %v", err)
	}
	spec, state, found, err := stx.GetMonitor(kind, pk)
	if err != nil || !found || !state.Live() {
		return spec, state, false, err
	}
	return spec, state, true, nil
}
