package monitor

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestKeyRoundTripsThroughParseKey(t *testing.T) {
	cases := []Spec{
		NewTxSpec(chainhash.Hash{0x01}, "tag"),
		NewGroupSpec("settlement-1", []chainhash.Hash{{0x01}, {0x02}}, ""),
		NewUtxoSpec(wireOutPoint(), ""),
		NewPegInSpec("federation-a", ""),
		NewBlockSpec(""),
	}

	for _, spec := range cases {
		key := spec.Key()
		kind, pk, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", key, err)
		}
		if kind != spec.Kind {
			t.Fatalf("ParseKey(%q) kind = %v, want %v", key, kind, spec.Kind)
		}
		if pk != spec.PrimaryKey() {
			t.Fatalf("ParseKey(%q) pk = %q, want %q", key, pk, spec.PrimaryKey())
		}
	}
}

func TestParseKeyRejectsMalformedInput(t *testing.T) {
	for _, bad := range []string{"", "notakey", "bogus/pk"} {
		if _, _, err := ParseKey(bad); err == nil {
			t.Fatalf("expected ParseKey(%q) to fail", bad)
		}
	}
}

func TestSpecEqualIgnoresContextTag(t *testing.T) {
	a := NewTxSpec(chainhash.Hash{0x01}, "alice")
	b := NewTxSpec(chainhash.Hash{0x01}, "bob")
	if !a.Equal(b) {
		t.Fatalf("expected specs differing only in ContextTag to be Equal")
	}

	c := NewTxSpec(chainhash.Hash{0x02}, "alice")
	if a.Equal(c) {
		t.Fatalf("expected specs with different txids to be unequal")
	}
}

func TestSpecEqualComparesGroupMembership(t *testing.T) {
	a := NewGroupSpec("g1", []chainhash.Hash{{0x01}, {0x02}}, "")
	same := NewGroupSpec("g1", []chainhash.Hash{{0x01}, {0x02}}, "")
	diff := NewGroupSpec("g1", []chainhash.Hash{{0x01}, {0x03}}, "")

	if !a.Equal(same) {
		t.Fatalf("expected identical group membership to be Equal")
	}
	if a.Equal(diff) {
		t.Fatalf("expected differing group membership to be unequal")
	}
}

func TestStateLiveAndPaused(t *testing.T) {
	active := State{Active: true}
	if !active.Live() || active.Paused() {
		t.Fatalf("active state should be Live and not Paused: %+v", active)
	}

	paused := State{Active: false}
	if paused.Live() || !paused.Paused() {
		t.Fatalf("inactive-but-not-cancelled state should be Paused: %+v", paused)
	}

	cancelled := State{Active: false, Cancelled: true}
	if cancelled.Live() || cancelled.Paused() {
		t.Fatalf("cancelled state should be neither Live nor Paused: %+v", cancelled)
	}
}

func TestDetectionConfirmations(t *testing.T) {
	det := Detection{Block: blockRefAt(100)}

	if got := det.Confirmations(99); got != 0 {
		t.Fatalf("Confirmations below block height = %d, want 0", got)
	}
	if got := det.Confirmations(100); got != 1 {
		t.Fatalf("Confirmations at block height = %d, want 1", got)
	}
	if got := det.Confirmations(105); got != 6 {
		t.Fatalf("Confirmations 5 blocks later = %d, want 6", got)
	}
}
