// Package monitor holds the data model shared between the store and the
// engine: monitor specs, their lifecycle state, detections, and news items.
// Cyclic references between these concepts (a monitor's detections, a
// detection's news) are represented by stable string keys rather than
// in-memory back-pointers, per spec.md §9 — the store is the single source
// of truth, these types are its value shapes.
package monitor

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Kind enumerates the five MonitorSpec variants. Matching dispatches on
// this tag rather than on open-ended subtyping, per spec.md §9.
type Kind uint8

const (
	KindTx Kind = iota
	KindGroup
	KindUtxo
	KindPegIn
	KindNewBlock
)

func (k Kind) String() string {
	switch k {
	case KindTx:
		return "tx"
	case KindGroup:
		return "group"
	case KindUtxo:
		return "utxo"
	case KindPegIn:
		return "pegin"
	case KindNewBlock:
		return "newblock"
	default:
		return "unknown"
	}
}

// newBlockSentinel is the single primary key under which the one allowed
// NewBlock monitor is registered, whatever its context tag.
const newBlockSentinel = "*"

// Spec is the polymorphic monitor registration request described in
// spec.md §3. Only the fields relevant to Kind are populated; callers
// should use the NewXxx constructors below rather than building a Spec by
// hand, so the (Kind, primary key) pair is always consistent.
type Spec struct {
	Kind Kind

	// ContextTag is caller-supplied opaque data returned verbatim on every
	// news item produced for this monitor, letting callers correlate news
	// with their own bookkeeping.
	ContextTag string

	// Txid is populated for KindTx.
	Txid chainhash.Hash

	// GroupID and Members are populated for KindGroup.
	GroupID string
	Members []chainhash.Hash

	// Outpoint is populated for KindUtxo.
	Outpoint wire.OutPoint

	// FederationTag is populated for KindPegIn, selecting which
	// configured federation's deposit script/magic/min-amount apply.
	FederationTag string
}

// NewTxSpec returns a Spec watching a single transaction.
func NewTxSpec(txid chainhash.Hash, contextTag string) Spec {
	return Spec{Kind: KindTx, Txid: txid, ContextTag: contextTag}
}

// NewGroupSpec returns a Spec watching a caller-defined set of transactions
// tied together under groupID.
func NewGroupSpec(groupID string, members []chainhash.Hash, contextTag string) Spec {
	return Spec{Kind: KindGroup, GroupID: groupID, Members: members, ContextTag: contextTag}
}

// NewUtxoSpec returns a Spec firing when the given outpoint is spent.
func NewUtxoSpec(op wire.OutPoint, contextTag string) Spec {
	return Spec{Kind: KindUtxo, Outpoint: op, ContextTag: contextTag}
}

// NewPegInSpec returns a Spec firing on transactions matching the peg-in
// predicate for federationTag.
func NewPegInSpec(federationTag, contextTag string) Spec {
	return Spec{Kind: KindPegIn, FederationTag: federationTag, ContextTag: contextTag}
}

// NewBlockSpec returns a Spec firing on every new canonical block.
func NewBlockSpec(contextTag string) Spec {
	return Spec{Kind: KindNewBlock, ContextTag: contextTag}
}

// PrimaryKey returns the variant-specific identifier spec.md §3 requires to
// be unique per (variant, primary_key).
func (s Spec) PrimaryKey() string {
	switch s.Kind {
	case KindTx:
		return s.Txid.String()
	case KindGroup:
		return s.GroupID
	case KindUtxo:
		return s.Outpoint.String()
	case KindPegIn:
		return s.FederationTag
	case KindNewBlock:
		return newBlockSentinel
	default:
		return ""
	}
}

// Key returns the stable store key for this spec: "<variant>/<pk>". It is
// used everywhere a cyclic reference to a monitor would otherwise be
// needed — detections, reverse indices, and news items all refer back to
// a monitor by this key instead of a pointer.
func (s Spec) Key() string {
	return fmt.Sprintf("%s/%s", s.Kind, s.PrimaryKey())
}

// ParseKey recovers the (Kind, primary key) pair encoded in a Key() string.
// The engine stores nothing but spec_key strings in its reverse indices and
// news items, so every lookup back to a monitor's ContextTag goes through
// this.
func ParseKey(key string) (Kind, string, error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("monitor: malformed spec key %q", key)
	}
	for k := KindTx; k <= KindNewBlock; k++ {
		if k.String() == parts[0] {
			return k, parts[1], nil
		}
	}
	return 0, "", fmt.Errorf("monitor: unknown kind in spec key %q", key)
}

// Equal reports whether two specs are the same registration request (same
// variant, primary key, and — for groups — same membership). It does not
// compare ContextTag, matching spec.md §7's DuplicateActive rule: an
// identical active spec re-registered with a different context tag is
// still a no-op, not a new monitor.
func (s Spec) Equal(o Spec) bool {
	if s.Kind != o.Kind || s.PrimaryKey() != o.PrimaryKey() {
		return false
	}
	if s.Kind == KindGroup {
		if len(s.Members) != len(o.Members) {
			return false
		}
		for i := range s.Members {
			if s.Members[i] != o.Members[i] {
				return false
			}
		}
	}
	return true
}

// State is the mutable lifecycle state attached to a registered Spec, per
// spec.md §3.
type State struct {
	Active          bool
	Cancelled       bool
	CreatedAtHeight uint32
	LastEventHeight uint32

	// GroupFinalizedEmitted is set once a Group monitor's single
	// Finalized news item (emitted when every member has reached
	// threshold) has been produced, so the Confirmation Tracker doesn't
	// re-emit it on every subsequent tick. Unused for non-Group kinds.
	GroupFinalizedEmitted bool

	// LastReorgAtHeight is the height at which this monitor's watched
	// txid was last orphaned by the Reorg Resolver, zero if it never has
	// been. Surfaced by get_tx_status as last_reorg_at (spec.md §6) so a
	// polling consumer can see reorg history without reading the news
	// queue.
	LastReorgAtHeight uint32
}

// Paused reports whether the monitor is alive but temporarily suppressed:
// active=false && !cancelled produces no events until re-activated, per
// spec.md §3.
func (s State) Paused() bool {
	return !s.Active && !s.Cancelled
}

// Live reports whether the monitor should be evaluated against new blocks
// at all: it must not be cancelled, and it must be active.
func (s State) Live() bool {
	return s.Active && !s.Cancelled
}
