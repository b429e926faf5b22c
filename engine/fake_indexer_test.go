package engine

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwatch/btcmonitor/indexer"
)

// fakeIndexer is a minimal in-memory indexer.Port, standing in for
// rpctest's real btcd harness the way chainntnfs/txconfnotifier_test.go
// drives its notifier off hand-built block structs rather than a live
// node.
type fakeIndexer struct {
	mu         sync.Mutex
	blocks     map[uint32]*indexer.Block
	best       uint32
	generation byte
}

func newFakeIndexer() *fakeIndexer {
	f := &fakeIndexer{blocks: make(map[uint32]*indexer.Block)}
	// Height 0 stands in for genesis. Its hash is the zero hash, which is
	// what newTestMonitor bootstraps the store at.
	f.putBlockLocked(0)
	return f
}

// extend appends a new block at the current tip+1, built from txns.
func (f *fakeIndexer) extend(txns ...*wire.MsgTx) indexer.BlockRef {
	f.mu.Lock()
	defer f.mu.Unlock()

	height := f.best + 1
	ref := f.putBlockLocked(height, txns...)
	f.best = height
	return ref
}

// reorg discards every block at or above fromHeight and bumps the
// generation counter, so that a subsequent extend() rebuilds the chain
// from fromHeight with hashes that differ from whatever was there before
// — standing in for a real chain's parent-hash linkage, which this fake
// has no notion of.
func (f *fakeIndexer) reorg(fromHeight uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for h := range f.blocks {
		if h >= fromHeight {
			delete(f.blocks, h)
		}
	}
	f.generation++
	if fromHeight == 0 {
		f.best = 0
	} else {
		f.best = fromHeight - 1
	}
}

func (f *fakeIndexer) putBlockLocked(height uint32, txns ...*wire.MsgTx) indexer.BlockRef {
	var hash chainhash.Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	hash[2] = f.generation

	block := &indexer.Block{
		Hash:   hash,
		Height: height,
		Txns:   toBtcutilTxs(txns),
	}
	f.blocks[height] = block
	return block.Ref()
}

func (f *fakeIndexer) BestHeight() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.best, nil
}

func (f *fakeIndexer) GetBlock(height uint32) (*indexer.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[height]
	if !ok {
		return nil, errBlockNotFound
	}
	return b, nil
}

func (f *fakeIndexer) GetTx(txid chainhash.Hash) (*indexer.TxLookup, error) {
	return nil, nil
}

func (f *fakeIndexer) UtxoSpentBy(op wire.OutPoint) (*chainhash.Hash, error) {
	return nil, nil
}

func (f *fakeIndexer) Ready() (bool, error) {
	return true, nil
}

var _ indexer.Port = (*fakeIndexer)(nil)
