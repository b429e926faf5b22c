package pegin

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func testFederation() Federation {
	return Federation{
		Tag:            "sidechain-a",
		DepositScript:  []byte{0xa9, 0x14, 0xaa, 0xbb, 0x87},
		Magic:          [MagicLen]byte{0x01, 0x02, 0x03, 0x04},
		MinPeginAmount: 1000,
	}
}

func opReturnScript(t *testing.T, payload []byte) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(payload).Script()
	if err != nil {
		t.Fatalf("building OP_RETURN script: %v", err)
	}
	return script
}

func TestMatchSucceedsOnDepositPlusOpReturn(t *testing.T) {
	fed := testFederation()
	var recipient [RecipientLen]byte
	recipient[0] = 0x7a

	payload := append(append([]byte{}, fed.Magic[:]...), recipient[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 2000, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, payload)})

	match, ok := fed.Match(tx)
	if !ok {
		t.Fatalf("expected match")
	}
	if match.DepositValue != 2000 {
		t.Fatalf("DepositValue = %d, want 2000", match.DepositValue)
	}
	if match.RecipientAddress != recipient {
		t.Fatalf("RecipientAddress = %x, want %x", match.RecipientAddress, recipient)
	}
}

func TestMatchSumsMultipleDepositOutputs(t *testing.T) {
	fed := testFederation()
	var recipient [RecipientLen]byte
	payload := append(append([]byte{}, fed.Magic[:]...), recipient[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 400, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 700, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, payload)})

	match, ok := fed.Match(tx)
	if !ok {
		t.Fatalf("expected match")
	}
	if match.DepositValue != 1100 {
		t.Fatalf("DepositValue = %d, want 1100 (sum of both deposit outputs)", match.DepositValue)
	}
}

func TestMatchFailsBelowMinimum(t *testing.T) {
	fed := testFederation()
	var recipient [RecipientLen]byte
	payload := append(append([]byte{}, fed.Magic[:]...), recipient[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, payload)})

	if _, ok := fed.Match(tx); ok {
		t.Fatalf("expected no match below MinPeginAmount")
	}
}

func TestMatchFailsWithoutOpReturn(t *testing.T) {
	fed := testFederation()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: fed.DepositScript})

	if _, ok := fed.Match(tx); ok {
		t.Fatalf("expected no match without a qualifying OP_RETURN output")
	}
}

func TestMatchFailsWithWrongMagic(t *testing.T) {
	fed := testFederation()
	var recipient [RecipientLen]byte
	badMagic := [MagicLen]byte{0xff, 0xff, 0xff, 0xff}
	payload := append(append([]byte{}, badMagic[:]...), recipient[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, payload)})

	if _, ok := fed.Match(tx); ok {
		t.Fatalf("expected no match with a non-matching magic prefix")
	}
}

func TestMatchIgnoresSecondOpReturn(t *testing.T) {
	fed := testFederation()
	var first, second [RecipientLen]byte
	first[0] = 0x11
	second[0] = 0x22
	firstPayload := append(append([]byte{}, fed.Magic[:]...), first[:]...)
	secondPayload := append(append([]byte{}, fed.Magic[:]...), second[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: fed.DepositScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, firstPayload)})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturnScript(t, secondPayload)})

	match, ok := fed.Match(tx)
	if !ok {
		t.Fatalf("expected match")
	}
	if match.RecipientAddress != first {
		t.Fatalf("expected the first OP_RETURN's recipient to win, got %x", match.RecipientAddress)
	}
}
