// Package btcdindexer implements indexer.Port against a btcd (or
// btcd-compatible) JSON-RPC node, the same backend
// chainntnfs/btcdnotify.go talks to. Unlike the teacher's notifier, which
// is subscription/callback driven (OnBlockConnected, OnBlockDisconnected),
// this adapter is pull-based: the engine calls BestHeight/GetBlock on its
// own tick() cadence rather than reacting to websocket pushes, since the
// monitor's single-writer tick model (spec.md §5) owns when chain state
// is reconciled.
package btcdindexer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/chainwatch/btcmonitor/indexer"
)

// Indexer adapts a btcd rpcclient.Client to the indexer.Port contract.
type Indexer struct {
	client *rpcclient.Client
}

// Ensure Indexer satisfies indexer.Port at compile time, the same
// assertion style btcdnotify.go uses for chainntnfs.ChainNotifier.
var _ indexer.Port = (*Indexer)(nil)

// New connects to the btcd node described by config. DisableConnectOnNew
// and notification callbacks are not used here since this adapter never
// subscribes — it only issues request/response RPCs on demand.
func New(config *rpcclient.ConnConfig) (*Indexer, error) {
	cfg := *config
	cfg.DisableConnectOnNew = false
	cfg.HTTPPostMode = true

	client, err := rpcclient.New(&cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to btcd: %v", err)
	}

	log.Infof("connected to indexer at %s", cfg.Host)
	return &Indexer{client: client}, nil
}

// Shutdown gracefully disconnects from the node.
func (i *Indexer) Shutdown() {
	i.client.Shutdown()
}

// BestHeight implements indexer.Port.
func (i *Indexer) BestHeight() (uint32, error) {
	_, height, err := i.client.GetBestBlock()
	if err != nil {
		return 0, err
	}
	return uint32(height), nil
}

// GetBlock implements indexer.Port.
func (i *Indexer) GetBlock(height uint32) (*indexer.Block, error) {
	hash, err := i.client.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("unable to get block hash at height %d: %v", height, err)
	}

	rawBlock, err := i.client.GetBlock(hash)
	if err != nil {
		return nil, fmt.Errorf("unable to get block %v: %v", hash, err)
	}

	return &indexer.Block{
		Hash:   *hash,
		Height: height,
		Txns:   btcutil.NewBlock(rawBlock).Transactions(),
	}, nil
}

// GetTx implements indexer.Port, falling back from the node's tx index
// (confDetailsFromTxIndex in btcdnotify.go) to nothing — unlike the
// teacher, this port has no "scan every block" fallback of its own,
// since the engine's Reorg Resolver already walks blocks forward from the
// common ancestor and discovers inclusion that way. The engine does not
// call GetTx.
func (i *Indexer) GetTx(txid chainhash.Hash) (*indexer.TxLookup, error) {
	tx, err := i.client.GetRawTransactionVerbose(&txid)
	if err != nil {
		if jsonErr, ok := err.(*btcjson.RPCError); ok && jsonErr.Code == btcjson.ErrRPCNoTxInfo {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to query for txid %v: %v", txid, err)
	}
	if tx == nil || tx.BlockHash == "" {
		return nil, nil
	}

	blockHash, err := chainhash.NewHashFromStr(tx.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("unable to parse block hash %v: %v", tx.BlockHash, err)
	}
	block, err := i.client.GetBlockVerbose(blockHash)
	if err != nil {
		return nil, fmt.Errorf("unable to get block %v: %v", blockHash, err)
	}

	rawTx, err := i.client.GetRawTransaction(&txid)
	if err != nil {
		return nil, fmt.Errorf("unable to get raw tx %v: %v", txid, err)
	}

	return &indexer.TxLookup{
		Tx: rawTx,
		Block: indexer.BlockRef{
			Height: uint32(block.Height),
			Hash:   *blockHash,
		},
	}, nil
}

// UtxoSpentBy implements indexer.Port by checking whether the output is
// still in the UTXO set; if it's gone, we report it unknown-spent rather
// than scanning for the spender, matching the "read-only port" scope of
// spec.md §2 — actual spend detection happens in the engine's per-block
// Detection Engine pass, not here.
func (i *Indexer) UtxoSpentBy(op wire.OutPoint) (*chainhash.Hash, error) {
	txOut, err := i.client.GetTxOut(&op.Hash, op.Index, true)
	if err != nil {
		return nil, fmt.Errorf("unable to query utxo %v: %v", op, err)
	}
	if txOut != nil {
		// Still unspent.
		return nil, nil
	}
	// Spent, but the spender's identity is discovered by the Detection
	// Engine scanning blocks, not by this port.
	return nil, nil
}

// Ready implements indexer.Port. A node that can still answer
// GetBlockCount is considered reachable; readiness in the
// initial-block-download sense is the indexer's own concern, not
// something this read-only port re-derives.
func (i *Indexer) Ready() (bool, error) {
	if _, err := i.client.GetBlockCount(); err != nil {
		return false, err
	}
	return true, nil
}
