// Package indexer defines the read-only port the monitor engine uses to
// learn about the canonical Bitcoin chain. The engine never builds blocks,
// validates consensus rules, or talks to a wallet — it only asks an
// external indexer (a node with an RPC front end, a block explorer, or any
// other canonical-chain source) what the chain currently looks like.
package indexer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// BlockRef identifies a block by height and hash. Two BlockRefs are only
// considered the "same" block when both fields agree; a height alone is not
// enough to identify a block across a reorg.
type BlockRef struct {
	Height uint32
	Hash   chainhash.Hash
}

// Block is the canonical view of a confirmed block the engine operates on.
// Txns is ordered by on-chain position, matching spec.md's tie-break rule
// of (tx position, rule order).
type Block struct {
	Hash   chainhash.Hash
	Height uint32
	Txns   []*btcutil.Tx
}

// Ref returns the BlockRef identifying this block.
func (b *Block) Ref() BlockRef {
	return BlockRef{Height: b.Height, Hash: b.Hash}
}

// TxLookup is returned by Port.GetTx: the transaction together with the
// block it was confirmed in.
type TxLookup struct {
	Tx    *btcutil.Tx
	Block BlockRef
}

// Port is the read-only contract the engine consumes. Implementations own
// the connection to the underlying Bitcoin node (or equivalent indexing
// service) and are responsible for presenting only canonical, confirmed
// chain state — the engine never sees mempool transactions through this
// interface, matching spec.md's "only confirmed blocks are considered"
// non-goal.
type Port interface {
	// BestHeight returns the height of the indexer's current best chain
	// tip.
	BestHeight() (uint32, error)

	// GetBlock returns the full block at the given height on the
	// indexer's current best chain.
	GetBlock(height uint32) (*Block, error)

	// GetTx looks up a transaction by id. It returns (nil, nil) if the
	// transaction is not known to be confirmed on the canonical chain.
	GetTx(txid chainhash.Hash) (*TxLookup, error)

	// UtxoSpentBy reports the txid that spends the given outpoint, if
	// any. It returns a nil hash if the outpoint is unspent or unknown.
	UtxoSpentBy(op wire.OutPoint) (*chainhash.Hash, error)

	// Ready reports whether the underlying node is caught up and able to
	// serve the above calls meaningfully (e.g. it is not still performing
	// its own initial block download).
	Ready() (bool, error)
}
