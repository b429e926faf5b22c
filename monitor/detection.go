package monitor

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
)

// Detection records that a monitored transaction was observed included in a
// block, per spec.md §3. A detection is alive while its including block is
// canonical, and becomes orphaned (removed) if the block is reorged out
// before the entity finalizes.
type Detection struct {
	SpecKey             string
	Txid                chainhash.Hash
	Block               indexer.BlockRef
	PositionInBlock     int
	DetectedAtTipHeight uint32

	// Finalized is set once the detection has reached the confirmation
	// threshold. It is tracked here (rather than solely inferred from
	// height math) so the Confirmation Tracker can tell whether a
	// Finalized news item has already been emitted for this detection.
	Finalized bool

	// PegIn carries the peg-in payload (spec.md §4.3) when SpecKey
	// addresses a PegIn monitor. Nil otherwise.
	PegIn *PegInMatch
}

// PegInMatch is the payload a peg-in detection carries: the aggregate
// deposit value paid to the federation script and the sibling-chain
// recipient address decoded from the OP_RETURN output.
type PegInMatch struct {
	DepositValue     int64
	RecipientAddress [20]byte
}

// Confirmations returns the number of confirmations the detection has at
// the given tip height, per spec.md §4.4: confirmations = tip - block + 1.
func (d Detection) Confirmations(tipHeight uint32) uint32 {
	if tipHeight < d.Block.Height {
		return 0
	}
	return tipHeight - d.Block.Height + 1
}
