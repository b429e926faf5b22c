package monitor

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwatch/btcmonitor/indexer"
)

// NewsKind enumerates the event kinds a monitor produces, per spec.md §3.
type NewsKind uint8

const (
	NewsDetected NewsKind = iota
	NewsConfirmationUpdate
	NewsFinalized
	NewsReorged
	NewsNewBlock
	NewsIndexerError
)

func (k NewsKind) String() string {
	switch k {
	case NewsDetected:
		return "Detected"
	case NewsConfirmationUpdate:
		return "ConfirmationUpdate"
	case NewsFinalized:
		return "Finalized"
	case NewsReorged:
		return "Reorged"
	case NewsNewBlock:
		return "NewBlock"
	case NewsIndexerError:
		return "IndexerError"
	default:
		return "Unknown"
	}
}

// NewsItem is a durable, acknowledgeable notification of a monitored
// entity's progress, per spec.md §3 and §4.6. Payload is a kind-specific
// struct (see below) that callers type-assert on Kind.
type NewsItem struct {
	NewsID          uint64
	Kind            NewsKind
	SpecKey         string
	ContextTag      string
	CreatedAtHeight uint32
	Acked           bool
	Payload         interface{}
}

// DetectedPayload is the Payload for NewsDetected.
type DetectedPayload struct {
	Txid  chainhash.Hash
	Block indexer.BlockRef
	PegIn *PegInMatch
}

// ConfirmationUpdatePayload is the Payload for NewsConfirmationUpdate.
type ConfirmationUpdatePayload struct {
	Txid          chainhash.Hash
	Confirmations uint32
}

// FinalizedPayload is the Payload for NewsFinalized.
type FinalizedPayload struct {
	Txid chainhash.Hash
}

// ReorgedPayload is the Payload for NewsReorged.
type ReorgedPayload struct {
	Txid      chainhash.Hash
	OldBlock  indexer.BlockRef
	WasFinal  bool
}

// NewBlockPayload is the Payload for NewsNewBlock.
type NewBlockPayload struct {
	Block indexer.BlockRef
}

// DeepReorgKind distinguishes IndexerError sub-kinds. Only DeepReorg is
// defined by spec.md §4.5, but the field leaves room for future indexer
// fault kinds without a schema change.
type DeepReorgKind string

const DeepReorg DeepReorgKind = "DeepReorg"

// IndexerErrorPayload is the Payload for NewsIndexerError.
type IndexerErrorPayload struct {
	Reason DeepReorgKind
	Depth  uint32
	Detail string
}
