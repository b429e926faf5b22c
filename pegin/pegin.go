// Package pegin implements the peg-in transaction predicate from spec.md
// §4.3: a transaction locks value to a federation's deposit script and
// encodes a sibling-chain recipient address in an OP_RETURN output.
//
// Script inspection is done the way chainntnfs/btcdnotify.go hand-rolls
// matching against wire.TxOut.PkScript rather than reaching for a
// higher-level "parse everything" helper — we only need the raw OP_RETURN
// payload bytes and an exact script-byte comparison for the deposit
// output, both cheaper and more precise than a general address parse.
package pegin

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwatch/btcmonitor/monitor"
)

// MagicLen is the fixed length, in bytes, of the federation magic prefix
// that begins every peg-in OP_RETURN payload.
const MagicLen = 4

// RecipientLen is the fixed length of the sibling-chain recipient address
// encoded after the magic.
const RecipientLen = 20

// PayloadLen is the exact total OP_RETURN payload length spec.md §4.3
// requires: magic ++ recipient.
const PayloadLen = MagicLen + RecipientLen

// Federation describes one configured peg-in target, per spec.md §6's
// `peg_in` config block.
type Federation struct {
	Tag             string
	DepositScript   []byte
	Magic           [MagicLen]byte
	MinPeginAmount  int64
}

// Match reports whether tx matches f's peg-in predicate and, if so,
// returns the detection payload described in spec.md §4.3.
//
// When several OP_RETURN outputs qualify, the first by output index
// supplies the recipient. Every output paying the deposit script counts
// toward the reported deposit value, which is their sum.
func (f Federation) Match(tx *wire.MsgTx) (*monitor.PegInMatch, bool) {
	var (
		depositTotal int64
		sawDeposit   bool
		recipient    [RecipientLen]byte
		sawRecipient bool
	)

	for _, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, f.DepositScript) {
			depositTotal += out.Value
			sawDeposit = true
			continue
		}

		payload, ok := opReturnPayload(out.PkScript)
		if !ok || len(payload) != PayloadLen {
			continue
		}
		if !bytes.Equal(payload[:MagicLen], f.Magic[:]) {
			continue
		}
		if sawRecipient {
			// Only the first matching OP_RETURN counts, per
			// spec.md's "first by output index" tie-break.
			continue
		}
		copy(recipient[:], payload[MagicLen:])
		sawRecipient = true
	}

	if !sawDeposit || !sawRecipient {
		return nil, false
	}
	if depositTotal < f.MinPeginAmount {
		return nil, false
	}

	return &monitor.PegInMatch{
		DepositValue:     depositTotal,
		RecipientAddress: recipient,
	}, true
}

// opReturnPayload returns the pushed data of an OP_RETURN script, if
// script is indeed a null-data script carrying exactly one data push.
func opReturnPayload(script []byte) ([]byte, bool) {
	if txscript.GetScriptClass(script) != txscript.NullDataTy {
		return nil, false
	}
	pushes, err := txscript.PushedData(script)
	if err != nil || len(pushes) != 1 {
		return nil, false
	}
	return pushes[0], true
}
