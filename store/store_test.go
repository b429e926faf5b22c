package store

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
	"github.com/chainwatch/btcmonitor/monitor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutGetMonitorRoundTrips(t *testing.T) {
	st := openTestStore(t)
	spec := monitor.NewTxSpec(chainhash.Hash{0x01}, "ctx")
	state := monitor.State{Active: true, CreatedAtHeight: 5}

	err := st.Update(func(tx *Tx) error {
		return tx.PutMonitor(spec, state)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		got, gotState, found, err := tx.GetMonitor(monitor.KindTx, spec.PrimaryKey())
		if err != nil {
			return err
		}
		if !found {
			t.Fatalf("expected monitor to be found")
		}
		if got.Txid != spec.Txid || gotState.CreatedAtHeight != 5 {
			t.Fatalf("round-trip mismatch: got %+v / %+v", got, gotState)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestDetectionRoundTripAndDelete(t *testing.T) {
	st := openTestStore(t)
	specKey := "tx/deadbeef"
	det := monitor.Detection{
		SpecKey: specKey,
		Txid:    chainhash.Hash{0x02},
		Block:   indexer.BlockRef{Height: 10, Hash: chainhash.Hash{0x03}},
	}

	err := st.Update(func(tx *Tx) error {
		return tx.PutDetection(det)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = st.Update(func(tx *Tx) error {
		got, found, err := tx.GetDetection(specKey, det.Txid)
		if err != nil {
			return err
		}
		if !found || got.Block.Height != 10 {
			t.Fatalf("expected detection round trip, got %+v found=%v", got, found)
		}
		return tx.DeleteDetection(specKey, det.Txid)
	})
	if err != nil {
		t.Fatalf("Update (delete): %v", err)
	}

	err = st.View(func(tx *Tx) error {
		_, found, err := tx.GetDetection(specKey, det.Txid)
		if err != nil {
			return err
		}
		if found {
			t.Fatalf("expected detection to be gone after delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestReverseIndexDedupesMembers(t *testing.T) {
	st := openTestStore(t)
	txid := chainhash.Hash{0x04}

	err := st.Update(func(tx *Tx) error {
		if err := tx.AddByTxid(txid, "tx/a"); err != nil {
			return err
		}
		if err := tx.AddByTxid(txid, "tx/b"); err != nil {
			return err
		}
		// Re-adding an existing member must not duplicate it.
		return tx.AddByTxid(txid, "tx/a")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		keys, err := tx.SpecKeysByTxid(txid)
		if err != nil {
			return err
		}
		if len(keys) != 2 {
			t.Fatalf("expected 2 distinct spec keys, got %v", keys)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestChainPruneAndTruncate(t *testing.T) {
	st := openTestStore(t)

	err := st.Update(func(tx *Tx) error {
		for h := uint32(1); h <= 5; h++ {
			if err := tx.PutChainHash(h, chainhash.Hash{byte(h)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = st.Update(func(tx *Tx) error {
		return tx.PruneChainBelow(3)
	})
	if err != nil {
		t.Fatalf("PruneChainBelow: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		if _, ok := tx.ChainHash(2); ok {
			t.Fatalf("expected height 2 to be pruned")
		}
		if _, ok := tx.ChainHash(3); !ok {
			t.Fatalf("expected height 3 to survive pruning")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	err = st.Update(func(tx *Tx) error {
		return tx.TruncateChainAbove(4)
	})
	if err != nil {
		t.Fatalf("TruncateChainAbove: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		if _, ok := tx.ChainHash(5); ok {
			t.Fatalf("expected height 5 to be truncated")
		}
		top, ok := tx.ChainTop()
		if !ok || top != 4 {
			t.Fatalf("expected ChainTop to be 4, got %d (%v)", top, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestAckNewsAndPruning(t *testing.T) {
	st := openTestStore(t)
	spec := monitor.NewTxSpec(chainhash.Hash{0x05}, "")

	var id uint64
	err := st.Update(func(tx *Tx) error {
		var err error
		id, err = tx.NextNewsID()
		if err != nil {
			return err
		}
		return tx.PutNews(monitor.NewsItem{
			NewsID:          id,
			Kind:            monitor.NewsDetected,
			SpecKey:         spec.Key(),
			CreatedAtHeight: 1,
		})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		items, err := tx.UnackedNews()
		if err != nil {
			return err
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 unacked item, got %d", len(items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// Acking an unknown id alongside a real one must not error, per the
	// news queue's silent-no-op rule.
	err = st.Update(func(tx *Tx) error {
		return tx.AckNews([]uint64{id, 99999})
	})
	if err != nil {
		t.Fatalf("AckNews: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		items, err := tx.UnackedNews()
		if err != nil {
			return err
		}
		if len(items) != 0 {
			t.Fatalf("expected 0 unacked items after ack, got %d", len(items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// Pruning far beyond the item's height (now acked) removes it.
	err = st.Update(func(tx *Tx) error {
		return tx.PruneNewsOlderThan(1000, 6)
	})
	if err != nil {
		t.Fatalf("PruneNewsOlderThan: %v", err)
	}

	err = st.View(func(tx *Tx) error {
		_, found, err := tx.GetNews(id)
		if err != nil {
			return err
		}
		if found {
			t.Fatalf("expected news item to be pruned")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
