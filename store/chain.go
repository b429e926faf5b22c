package store

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
)

// PutChainHash records the canonical hash at height in the RecentChain
// window, per spec.md §3.
func (t *Tx) PutChainHash(height uint32, hash chainhash.Hash) error {
	return t.tx.Bucket(bucketChain).Put(beUint32(height), hash[:])
}

// ChainHash returns the recorded hash at height, if any is still within
// the retained window.
func (t *Tx) ChainHash(height uint32) (chainhash.Hash, bool) {
	raw := t.tx.Bucket(bucketChain).Get(beUint32(height))
	if raw == nil {
		return chainhash.Hash{}, false
	}
	var h chainhash.Hash
	copy(h[:], raw)
	return h, true
}

// TruncateChainAbove deletes every recorded hash above height, used by the
// Reorg Resolver when rewinding to a common ancestor.
func (t *Tx) TruncateChainAbove(height uint32) error {
	b := t.tx.Bucket(bucketChain)
	c := b.Cursor()
	var toDelete [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if parseUint32(k) > height {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// PruneChainBelow deletes every recorded hash strictly below height,
// bounding the RecentChain window's retained size to W, per spec.md §3.
func (t *Tx) PruneChainBelow(height uint32) error {
	if height == 0 {
		return nil
	}
	b := t.tx.Bucket(bucketChain)
	c := b.Cursor()
	var toDelete [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if parseUint32(k) < height {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ChainTop returns the highest height still recorded in the RecentChain
// window, and whether any height is recorded at all.
func (t *Tx) ChainTop() (uint32, bool) {
	c := t.tx.Bucket(bucketChain).Cursor()
	k, _ := c.Last()
	if k == nil {
		return 0, false
	}
	return parseUint32(k), true
}

// RecentChainSuffix returns every recorded BlockRef from height down to
// (and including) the lowest retained height, in descending height order
// — used by the Reorg Resolver to walk the stored chain top-down when
// diffing against the indexer (spec.md §4.5 step 2).
func (t *Tx) RecentChainSuffix() ([]indexer.BlockRef, error) {
	b := t.tx.Bucket(bucketChain)
	c := b.Cursor()
	var out []indexer.BlockRef
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var h chainhash.Hash
		copy(h[:], v)
		out = append(out, indexer.BlockRef{Height: parseUint32(k), Hash: h})
	}
	return out, nil
}
