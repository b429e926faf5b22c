package store

import (
	"github.com/coreos/bbolt"

	"github.com/chainwatch/btcmonitor/monitor"
)

type monitorRecord struct {
	Spec  monitor.Spec
	State monitor.State
}

// monitorsBucketRO returns the read-only sub-bucket for kind, or nil if it
// has never been created (no monitors of that kind registered yet). Safe
// to call from a View transaction.
func (t *Tx) monitorsBucketRO(kind monitor.Kind) *bbolt.Bucket {
	root := t.tx.Bucket(bucketMonitors)
	return root.Bucket([]byte(kind.String()))
}

// PutMonitor upserts a monitor's spec and state, keyed by
// "<variant>/<pk>" per spec.md §4.1.
func (t *Tx) PutMonitor(spec monitor.Spec, state monitor.State) error {
	b, err := t.monitorsBucket(spec.Kind)
	if err != nil {
		return err
	}
	raw, err := encode(monitorRecord{Spec: spec, State: state})
	if err != nil {
		return err
	}
	return b.Put([]byte(spec.PrimaryKey()), raw)
}

// GetMonitor looks up a single monitor by its full key.
func (t *Tx) GetMonitor(kind monitor.Kind, primaryKey string) (monitor.Spec, monitor.State, bool, error) {
	b := t.monitorsBucketRO(kind)
	if b == nil {
		return monitor.Spec{}, monitor.State{}, false, nil
	}
	raw := b.Get([]byte(primaryKey))
	if raw == nil {
		return monitor.Spec{}, monitor.State{}, false, nil
	}
	var rec monitorRecord
	if err := decode(raw, &rec); err != nil {
		return monitor.Spec{}, monitor.State{}, false, err
	}
	return rec.Spec, rec.State, true, nil
}

// AllMonitors returns every registered (Spec, State) pair across all
// variants, for get_monitors.
func (t *Tx) AllMonitors() ([]monitor.Spec, []monitor.State, error) {
	var specs []monitor.Spec
	var states []monitor.State

	root := t.tx.Bucket(bucketMonitors)
	err := root.ForEach(func(kindName, v []byte) error {
		if v != nil {
			// Not a sub-bucket; shouldn't happen, skip defensively.
			return nil
		}
		kindBucket := root.Bucket(kindName)
		return kindBucket.ForEach(func(_, raw []byte) error {
			var rec monitorRecord
			if err := decode(raw, &rec); err != nil {
				return err
			}
			specs = append(specs, rec.Spec)
			states = append(states, rec.State)
			return nil
		})
	})
	return specs, states, err
}

// LiveMonitorsOfKind returns the specs+states of every non-cancelled,
// active monitor of the given kind.
func (t *Tx) LiveMonitorsOfKind(kind monitor.Kind) ([]monitor.Spec, []monitor.State, error) {
	b := t.monitorsBucketRO(kind)
	if b == nil {
		return nil, nil, nil
	}
	var specs []monitor.Spec
	var states []monitor.State
	err := b.ForEach(func(_, raw []byte) error {
		var rec monitorRecord
		if err := decode(raw, &rec); err != nil {
			return err
		}
		if rec.State.Live() {
			specs = append(specs, rec.Spec)
			states = append(states, rec.State)
		}
		return nil
	})
	return specs, states, err
}

// AddByTxid appends specKey to the reverse index of monitors watching
// txid directly (Tx and Group monitors).
func (t *Tx) AddByTxid(txid [32]byte, specKey string) error {
	return t.addToSet(bucketByTxid, txid[:], specKey)
}

// SpecKeysByTxid returns every spec_key watching txid via the by_txid
// reverse index.
func (t *Tx) SpecKeysByTxid(txid [32]byte) ([]string, error) {
	return t.readSet(bucketByTxid, txid[:])
}

// AddByOutpoint appends specKey to the reverse index of Utxo monitors
// watching the given outpoint.
func (t *Tx) AddByOutpoint(outpointKey []byte, specKey string) error {
	return t.addToSet(bucketByOutpoint, outpointKey, specKey)
}

// SpecKeysByOutpoint returns every spec_key watching the given outpoint.
func (t *Tx) SpecKeysByOutpoint(outpointKey []byte) ([]string, error) {
	return t.readSet(bucketByOutpoint, outpointKey)
}

func (t *Tx) addToSet(bucket, key []byte, member string) error {
	b := t.tx.Bucket(bucket)
	existing, err := t.readSet(bucket, key)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if m == member {
			return nil
		}
	}
	existing = append(existing, member)
	raw, err := encode(existing)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

func (t *Tx) readSet(bucket, key []byte) ([]string, error) {
	b := t.tx.Bucket(bucket)
	raw := b.Get(key)
	if raw == nil {
		return nil, nil
	}
	var members []string
	if err := decode(raw, &members); err != nil {
		return nil, err
	}
	return members, nil
}
