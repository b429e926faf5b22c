package engine

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"

	"github.com/chainwatch/btcmonitor/indexer"
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// detectBlock runs the four matching rules from spec.md §4.2, in order, over
// every transaction of block: direct txid match (Tx/Group), UTXO-spend
// match, peg-in predicate, then the block-level NewBlock rule. It reuses the
// teacher's reverse-index idiom from chainntnfs/txconfnotifier.go
// (confNotifications keyed by txid) generalized from a single numeric
// ConfID to arbitrary spec_key strings.
func (m *Monitor) detectBlock(stx *store.Tx, block *indexer.Block, tipHeight uint32, isReplay bool) error {
	ref := block.Ref()

	for pos, tx := range block.Txns {
		if err := m.detectTxidMatches(stx, tx, ref, pos, tipHeight); err != nil {
			return err
		}
		if err := m.detectUtxoSpends(stx, tx, ref, pos, tipHeight); err != nil {
			return err
		}
		if err := m.detectPegIns(stx, tx, ref, pos, tipHeight); err != nil {
			return err
		}
	}

	return m.detectNewBlock(stx, ref, tipHeight, isReplay)
}

// detectTxidMatches fires Tx and Group monitors watching tx.Hash() directly.
func (m *Monitor) detectTxidMatches(stx *store.Tx, tx *btcutil.Tx, block indexer.BlockRef, pos int, tipHeight uint32) error {
	specKeys, err := stx.SpecKeysByTxid(*tx.Hash())
	if err != nil {
		return err
	}
	for _, specKey := range specKeys {
		if err := m.recordDetection(stx, specKey, *tx.Hash(), block, pos, tipHeight, nil); err != nil {
			return err
		}
	}
	return nil
}

// detectUtxoSpends fires Utxo monitors watching any outpoint tx spends.
func (m *Monitor) detectUtxoSpends(stx *store.Tx, tx *btcutil.Tx, block indexer.BlockRef, pos int, tipHeight uint32) error {
	for _, in := range tx.MsgTx().TxIn {
		key := store.OutpointKey(in.PreviousOutPoint)
		specKeys, err := stx.SpecKeysByOutpoint(key)
		if err != nil {
			return err
		}
		for _, specKey := range specKeys {
			if err := m.recordDetection(stx, specKey, *tx.Hash(), block, pos, tipHeight, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// detectPegIns fires the configured PegIn monitors whose federation
// predicate tx satisfies, per spec.md §4.3.
func (m *Monitor) detectPegIns(stx *store.Tx, tx *btcutil.Tx, block indexer.BlockRef, pos int, tipHeight uint32) error {
	for tag, fed := range m.cfg.Federations {
		match, ok := fed.Match(tx.MsgTx())
		if !ok {
			continue
		}
		spec := monitor.NewPegInSpec(tag, "")
		if err := m.recordDetection(stx, spec.Key(), *tx.Hash(), block, pos, tipHeight, match); err != nil {
			return err
		}
	}
	return nil
}

// recordDetection upserts a Detection for specKey/txid and, if it is newly
// observed (or newly re-observed after having been orphaned by a reorg),
// emits a Detected news item. Re-detecting the identical (specKey, txid,
// block) pair is idempotent and produces no duplicate news.
func (m *Monitor) recordDetection(stx *store.Tx, specKey string, txid chainhash.Hash, block indexer.BlockRef, pos int, tipHeight uint32, pegin *monitor.PegInMatch) error {
	spec, _, live, err := lookupLiveSpec(stx, specKey)
	if err != nil {
		return err
	}
	if !live {
		return nil
	}

	existing, found, err := stx.GetDetection(specKey, txid)
	if err != nil {
		return err
	}
	if found && existing.Block == block {
		// Already recorded against this exact block; nothing new.
		return nil
	}

	det := monitor.Detection{
		SpecKey:             specKey,
		Txid:                txid,
		Block:               block,
		PositionInBlock:     pos,
		DetectedAtTipHeight: tipHeight,
		PegIn:               pegin,
	}
	if err := stx.PutDetection(det); err != nil {
		return err
	}

	return emitNews(stx, monitor.NewsDetected, spec, tipHeight, monitor.DetectedPayload{
		Txid:  det.Txid,
		Block: block,
		PegIn: pegin,
	})
}

// detectNewBlock fires the single allowed NewBlock monitor, if any is
// registered and live. Emission on replayed (previously-seen) heights is
// gated by NewBlockEmitOnReplay, resolving spec.md §9's Open Question.
func (m *Monitor) detectNewBlock(stx *store.Tx, block indexer.BlockRef, tipHeight uint32, isReplay bool) error {
	if isReplay && !m.cfg.NewBlockEmitOnReplay {
		return nil
	}

	spec, _, live, err := lookupLiveSpec(stx, monitor.NewBlockSpec("").Key())
	if err != nil {
		return err
	}
	if !live {
		return nil
	}

	return emitNews(stx, monitor.NewsNewBlock, spec, tipHeight, monitor.NewBlockPayload{Block: block})
}
