package engine

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// Monitor implements MonitorApi's monitor(): it registers spec, wiring it
// into whichever reverse index its Kind needs so the Detection Engine finds
// it on the next tick. Re-registering an already-active, identical spec is
// a no-op rather than an error, per spec.md §7's DuplicateActive rule;
// re-registering over a paused or cancelled key re-activates it fresh.
func (m *Monitor) Monitor(spec monitor.Spec) error {
	if err := validateSpec(spec, m.cfg); err != nil {
		return err
	}

	return m.store.Update(func(stx *store.Tx) error {
		existing, state, found, err := stx.GetMonitor(spec.Kind, spec.PrimaryKey())
		if err != nil {
			return err
		}
		if found && state.Live() {
			if existing.Equal(spec) {
				return nil
			}
			return monitor.NewError(monitor.ErrKindDuplicateActive,
				"a different %s monitor is already active for key %s", spec.Kind, spec.PrimaryKey())
		}

		createdAt := uint32(stx.Cursor())
		if found {
			createdAt = state.CreatedAtHeight
		}
		newState := monitor.State{Active: true, CreatedAtHeight: createdAt}
		if err := stx.PutMonitor(spec, newState); err != nil {
			return err
		}

		return indexSpec(stx, spec)
	})
}

// indexSpec wires a freshly-registered spec into the reverse index its Kind
// needs, so detectBlock's per-tx lookups find it.
func indexSpec(stx *store.Tx, spec monitor.Spec) error {
	switch spec.Kind {
	case monitor.KindTx:
		return stx.AddByTxid(spec.Txid, spec.Key())
	case monitor.KindGroup:
		for _, member := range spec.Members {
			if err := stx.AddByTxid(member, spec.Key()); err != nil {
				return err
			}
		}
		return nil
	case monitor.KindUtxo:
		return stx.AddByOutpoint(store.OutpointKey(spec.Outpoint), spec.Key())
	case monitor.KindPegIn, monitor.KindNewBlock:
		// PegIn and NewBlock are matched by scanning every block's
		// transactions directly (detectPegIns/detectNewBlock), not
		// through a reverse index.
		return nil
	default:
		return monitor.NewError(monitor.ErrKindConfig, "unknown monitor kind %v", spec.Kind)
	}
}

// validateSpec rejects registrations this repo cannot service: a Group with
// no members, or a PegIn naming a federation that isn't configured.
func validateSpec(spec monitor.Spec, cfg Config) error {
	switch spec.Kind {
	case monitor.KindGroup:
		if len(spec.Members) == 0 {
			return monitor.NewError(monitor.ErrKindConfig, "group monitor %s has no members", spec.GroupID)
		}
	case monitor.KindPegIn:
		if _, ok := cfg.Federations[spec.FederationTag]; !ok {
			return monitor.NewError(monitor.ErrKindConfig, "unknown federation tag %q", spec.FederationTag)
		}
	}
	return nil
}

// Cancel implements MonitorApi's cancel(): retires a monitor. A cancelled
// monitor produces no news and cannot be paused with DeactivateMonitor;
// registering the same key again through Monitor re-activates it.
func (m *Monitor) Cancel(kind monitor.Kind, primaryKey string) error {
	return m.store.Update(func(stx *store.Tx) error {
		spec, state, found, err := stx.GetMonitor(kind, primaryKey)
		if err != nil {
			return err
		}
		if !found {
			return monitor.ErrNotFound
		}
		state.Active = false
		state.Cancelled = true
		return stx.PutMonitor(spec, state)
	})
}

// DeactivateMonitor implements MonitorApi's deactivate_monitor(): pauses a
// monitor without retiring it. A paused monitor produces no news until
// re-registered via Monitor, which reactivates it in place.
func (m *Monitor) DeactivateMonitor(kind monitor.Kind, primaryKey string) error {
	return m.store.Update(func(stx *store.Tx) error {
		spec, state, found, err := stx.GetMonitor(kind, primaryKey)
		if err != nil {
			return err
		}
		if !found {
			return monitor.ErrNotFound
		}
		if state.Cancelled {
			return monitor.ErrNotFound
		}
		state.Active = false
		return stx.PutMonitor(spec, state)
	})
}

// GetMonitors implements MonitorApi's get_monitors().
func (m *Monitor) GetMonitors() ([]monitor.Spec, []monitor.State, error) {
	var specs []monitor.Spec
	var states []monitor.State
	err := m.store.View(func(stx *store.Tx) error {
		var err error
		specs, states, err = stx.AllMonitors()
		return err
	})
	if err != nil {
		return nil, nil, monitor.WrapError(monitor.ErrKindStore, err)
	}
	return specs, states, nil
}

// GetNews implements MonitorApi's get_news(): every unacknowledged news
// item, oldest first.
func (m *Monitor) GetNews() ([]monitor.NewsItem, error) {
	var items []monitor.NewsItem
	err := m.store.View(func(stx *store.Tx) error {
		var err error
		items, err = stx.UnackedNews()
		return err
	})
	if err != nil {
		return nil, monitor.WrapError(monitor.ErrKindStore, err)
	}
	return items, nil
}

// AckNews implements MonitorApi's ack_news(). Acking an unknown id is a
// silent no-op, per spec.md §4.6.
func (m *Monitor) AckNews(ids []uint64) error {
	err := m.store.Update(func(stx *store.Tx) error {
		return stx.AckNews(ids)
	})
	if err != nil {
		return monitor.WrapError(monitor.ErrKindStore, err)
	}
	return nil
}

// TxStatus is the answer to get_tx_status(): a snapshot of a watched
// transaction's progress independent of any pending, unacked news.
type TxStatus struct {
	Monitored     bool
	Confirmations uint32
	Block         *indexer.BlockRef
	Finalized     bool

	// LastReorgAt is the height at which this txid's detection was last
	// orphaned by the Reorg Resolver, nil if it never has been — the
	// optional last_reorg_at field spec.md §6 defines for get_tx_status.
	LastReorgAt *uint32
}

// GetTxStatus implements MonitorApi's get_tx_status(): the current
// confirmation state of a Tx-kind monitor's watched transaction, read
// straight from the store rather than from the news queue.
func (m *Monitor) GetTxStatus(txid chainhash.Hash) (TxStatus, error) {
	spec := monitor.NewTxSpec(txid, "")

	var status TxStatus
	err := m.store.View(func(stx *store.Tx) error {
		_, state, found, err := stx.GetMonitor(monitor.KindTx, spec.PrimaryKey())
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		status.Monitored = true
		if state.LastReorgAtHeight != 0 {
			height := state.LastReorgAtHeight
			status.LastReorgAt = &height
		}

		det, found, err := stx.GetDetection(spec.Key(), txid)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		block := det.Block
		status.Block = &block
		status.Finalized = det.Finalized
		status.Confirmations = det.Confirmations(uint32(stx.Cursor()))
		return nil
	})
	if err != nil {
		return TxStatus{}, monitor.WrapError(monitor.ErrKindStore, err)
	}
	if !status.Monitored {
		return TxStatus{}, monitor.ErrNotMonitored
	}
	return status, nil
}
