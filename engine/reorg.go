package engine

import (
	"github.com/chainwatch/btcmonitor/indexer"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// findCommonAncestor walks the stored RecentChain from its highest retained
// height downward, comparing each stored hash against what the indexer now
// reports at that height, until it finds a match or exhausts the retained
// window. This generalizes TxConfNotifier.DisconnectTip's single-block
// rollback (chainntnfs/txconfnotifier.go) into the multi-block chain-diff
// walk spec.md §4.5 describes.
//
// It returns the ancestor height, whether any divergence was found at all,
// and the height of the highest stored block (needed by the caller to size
// the reorg depth and to know which replayed heights are "replay" rather
// than genuinely new, per the new_block_emit_on_replay flag).
func (m *Monitor) findCommonAncestor(bestHeight uint32) (ancestor uint32, priorTop uint32, divergent bool, err error) {
	var chain []indexer.BlockRef
	err = m.store.View(func(stx *store.Tx) error {
		chain, err = stx.RecentChainSuffix()
		return err
	})
	if err != nil {
		return 0, 0, false, err
	}
	if len(chain) == 0 {
		return 0, 0, false, nil
	}

	priorTop = chain[0].Height

	for _, ref := range chain {
		if ref.Height > bestHeight {
			// The indexer's chain is now shorter than what we last
			// saw at this height; definitely diverged here.
			continue
		}
		indexerBlock, err := m.idx.GetBlock(ref.Height)
		if err != nil {
			return 0, priorTop, false, err
		}
		if indexerBlock.Hash == ref.Hash {
			return ref.Height, priorTop, ref.Height != priorTop, nil
		}
	}

	// No match anywhere in the retained window: the reorg is at least as
	// deep as the window itself. Report one below the lowest retained
	// height (or 0 when that is 0). Once more than ReorgWindow heights are
	// retained, the caller's depth then exceeds ReorgWindow and trips the
	// deep-reorg fault; with a shorter retained chain (as right after
	// Bootstrap) the depth may not exceed it, and the caller rewinds to the
	// reported height instead.
	lowest := chain[len(chain)-1].Height
	if lowest == 0 {
		return 0, priorTop, true, nil
	}
	return lowest - 1, priorTop, true, nil
}

// orphanAbove removes every detection whose including block is above
// ancestor, emits a Reorged news item for each, truncates the RecentChain
// index above ancestor, and rewinds the cursor to ancestor. All of this
// happens in a single atomic store.Update, matching spec.md §4.5 step 3.
func (m *Monitor) orphanAbove(ancestor uint32, atHeight uint32) error {
	return m.store.Update(func(stx *store.Tx) error {
		var orphaned []monitor.Detection
		err := stx.AllDetections(func(d monitor.Detection) error {
			if d.Block.Height > ancestor {
				orphaned = append(orphaned, d)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, d := range orphaned {
			spec, state, live, err := lookupLiveSpec(stx, d.SpecKey)
			if err != nil {
				return err
			}
			if err := stx.DeleteDetection(d.SpecKey, d.Txid); err != nil {
				return err
			}
			if !live {
				continue
			}

			// Record last_reorg_at on the owning monitor's State so
			// get_tx_status can surface it even after the Detection
			// record itself is gone, per spec.md §6.
			state.LastReorgAtHeight = atHeight
			if err := stx.PutMonitor(spec, state); err != nil {
				return err
			}

			if err := emitNews(stx, monitor.NewsReorged, spec, atHeight, monitor.ReorgedPayload{
				Txid:     d.Txid,
				OldBlock: d.Block,
				WasFinal: d.Finalized,
			}); err != nil {
				return err
			}
		}

		if err := stx.TruncateChainAbove(ancestor); err != nil {
			return err
		}
		return stx.SetCursor(uint64(ancestor))
	})
}

// indexerFaultKey is the spec_key news_by_spec indexes IndexerError items
// under, since they are a fault in the indexer relationship itself and not
// tied to any one monitor.
const indexerFaultKey = "indexer/fault"

// emitIndexerError persists a single IndexerError news item not tied to any
// one monitor's spec_key — deep reorgs are a fault in the indexer
// relationship itself, not a per-monitor event, per spec.md §4.5/§7.
func (m *Monitor) emitIndexerError(stx *store.Tx, height uint32, reason monitor.DeepReorgKind, depth uint32, detail string) error {
	id, err := stx.NextNewsID()
	if err != nil {
		return err
	}
	item := monitor.NewsItem{
		NewsID:          id,
		Kind:            monitor.NewsIndexerError,
		SpecKey:         indexerFaultKey,
		CreatedAtHeight: height,
		Payload: monitor.IndexerErrorPayload{
			Reason: reason,
			Depth:  depth,
			Detail: detail,
		},
	}
	if err := stx.PutNews(item); err != nil {
		return err
	}
	log.Errorf("indexer fault at height %d: %s", height, detail)
	return nil
}

// deepReorgError formats the ErrKindDeepReorg error returned to the caller
// of Tick when a reorg exceeds the configured reorg window.
func deepReorgError(depth, window uint32) error {
	return monitor.NewError(monitor.ErrKindDeepReorg,
		"reorg depth %d exceeds configured reorg window %d", depth, window)
}
