// Package store is the durable persistence layer for the monitor, per
// spec.md §4.1. It is bbolt-backed (github.com/coreos/bbolt), bucket
// namespaced exactly as listed in spec.md, and nested the way
// channeldb/channel.go nests its own buckets (CreateBucketIfNotExists
// chains, big-endian integer keys).
//
// Every mutating method below is expected to be called from inside a
// single bbolt.Update transaction per committed height, giving the
// "single atomic batch per block" guarantee spec.md §4.1 asks for without
// any extra bookkeeping: bbolt's own transaction is the batch.
package store

import (
	"fmt"
	"time"

	"github.com/coreos/bbolt"

	"github.com/chainwatch/btcmonitor/monitor"
)

// schemaVersion is bumped whenever the on-disk layout changes in a way
// that isn't forward compatible. spec.md §6 requires this be versioned and
// checked on open.
const schemaVersion = 1

var (
	bucketMonitors    = []byte("monitors")
	bucketDetections  = []byte("detections")
	bucketByTxid      = []byte("by_txid")
	bucketByOutpoint  = []byte("by_outpoint")
	bucketNews        = []byte("news")
	bucketNewsBySpec  = []byte("news_by_spec")
	bucketChain       = []byte("chain")
	bucketMeta        = []byte("meta")

	keyCursor          = []byte("cursor")
	keyNextNewsID      = []byte("next_news_id")
	keySchemaVersion   = []byte("schema_version")
	keyDeepReorgFault  = []byte("deep_reorg_fault")
	keyDeepReorgDepth  = []byte("deep_reorg_depth")
	keyDeepReorgWindow = []byte("deep_reorg_window")
)

// ErrSchemaVersion is returned by Open when the on-disk schema version
// does not match this build's schemaVersion.
var ErrSchemaVersion = fmt.Errorf("chainwatch/btcmonitor/store: on-disk schema version mismatch")

// Store is the durable handle to the monitor's state. Its lifecycle is
// explicit: Open on construction, Close on teardown, matching spec.md
// §9's "global mutable state... has explicit lifecycle" design note.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures all top-level buckets and the schema version key exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open store at %s: %v", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketMonitors, bucketDetections, bucketByTxid,
			bucketByOutpoint, bucketNews, bucketNewsBySpec,
			bucketChain, bucketMeta,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		existing := meta.Get(keySchemaVersion)
		if existing == nil {
			return meta.Put(keySchemaVersion, beUint32(schemaVersion))
		}
		if parseUint32(existing) != schemaVersion {
			return ErrSchemaVersion
		}
		return nil
	})
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a single read-write transaction: the "single
// atomic batch" spec.md §4.1 requires per committed height. A crash
// during fn leaves the store exactly as it was before Update was called,
// since bbolt never partially commits a transaction.
func (s *Store) Update(fn func(*Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// View runs fn inside a read-only transaction against a consistent
// snapshot, safe to call concurrently with an in-flight Update — this is
// bbolt's native MVCC guarantee, which is exactly the consistency spec.md
// §5 promises for get_news/get_tx_status/get_monitors/etc.
func (s *Store) View(fn func(*Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// Tx is a store-level transaction handle, wrapping a bbolt transaction
// with the monitor domain's read/write operations.
type Tx struct {
	tx *bbolt.Tx
}

// Cursor returns the last processed height. Before the first committed
// tick this is 0.
func (t *Tx) Cursor() uint64 {
	v := t.tx.Bucket(bucketMeta).Get(keyCursor)
	if v == nil {
		return 0
	}
	return parseUint64(v)
}

// SetCursor advances the last processed height.
func (t *Tx) SetCursor(height uint64) error {
	return t.tx.Bucket(bucketMeta).Put(keyCursor, beUint64(height))
}

// DeepReorgFault reports whether a prior tick recorded a reorg deeper than
// the configured window, and if so the depth/window pair it recorded.
func (t *Tx) DeepReorgFault() (depth uint32, window uint32, faulted bool) {
	meta := t.tx.Bucket(bucketMeta)
	v := meta.Get(keyDeepReorgFault)
	if v == nil {
		return 0, 0, false
	}
	return parseUint32(meta.Get(keyDeepReorgDepth)), parseUint32(meta.Get(keyDeepReorgWindow)), true
}

// SetDeepReorgFault persists the fault sentinel that halts further ticks
// until ClearDeepReorgFault is called, per spec.md §8 property 7's
// exactly-once IndexerError guarantee.
func (t *Tx) SetDeepReorgFault(depth, window uint32) error {
	meta := t.tx.Bucket(bucketMeta)
	if err := meta.Put(keyDeepReorgFault, []byte{1}); err != nil {
		return err
	}
	if err := meta.Put(keyDeepReorgDepth, beUint32(depth)); err != nil {
		return err
	}
	return meta.Put(keyDeepReorgWindow, beUint32(window))
}

// ClearDeepReorgFault removes the fault sentinel, allowing Tick to resume
// once an operator has widened ReorgWindow. The cursor and RecentChain
// index are left as they are.
func (t *Tx) ClearDeepReorgFault() error {
	meta := t.tx.Bucket(bucketMeta)
	if err := meta.Delete(keyDeepReorgFault); err != nil {
		return err
	}
	if err := meta.Delete(keyDeepReorgDepth); err != nil {
		return err
	}
	return meta.Delete(keyDeepReorgWindow)
}

// monitorsBucket returns the sub-bucket for a given monitor Kind,
// creating it if necessary.
func (t *Tx) monitorsBucket(kind monitor.Kind) (*bbolt.Bucket, error) {
	root := t.tx.Bucket(bucketMonitors)
	return root.CreateBucketIfNotExists([]byte(kind.String()))
}
