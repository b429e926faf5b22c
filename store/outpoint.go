package store

import "github.com/btcsuite/btcd/wire"

// OutpointKey encodes op as a fixed 36-byte key (32-byte txid ++ big-endian
// uint32 index) for use with the by_outpoint reverse index. Centralized here
// so the engine's detection pass and the facade's registration path always
// agree on the encoding.
func OutpointKey(op wire.OutPoint) []byte {
	key := make([]byte, 36)
	copy(key, op.Hash[:])
	copy(key[32:], beUint32(op.Index))
	return key
}
