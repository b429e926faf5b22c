package monitor

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwatch/btcmonitor/indexer"
)

func wireOutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash{0x09}, Index: 3}
}

func blockRefAt(height uint32) indexer.BlockRef {
	return indexer.BlockRef{Height: height, Hash: chainhash.Hash{0x01}}
}
