package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/chainwatch/btcmonitor/monitor"
)

// Values are gob-encoded. The teacher's own channeldb hand-rolls binary
// encoding per struct (see channeldb/channel.go), which pays off when you
// need a wire-stable format shared with other implementations; here the
// store is the only reader and writer of its own bytes, so gob's
// reflection-driven encode/decode removes an entire class of by-hand
// (de)serialization bugs for no externally visible cost. This is the one
// concern in the store left on the standard library rather than a pack
// dependency — see DESIGN.md.
func init() {
	gob.Register(monitor.DetectedPayload{})
	gob.Register(monitor.ConfirmationUpdatePayload{})
	gob.Register(monitor.FinalizedPayload{})
	gob.Register(monitor.ReorgedPayload{})
	gob.Register(monitor.NewBlockPayload{})
	gob.Register(monitor.IndexerErrorPayload{})
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// beUint64 and beUint32 encode integer store keys in big-endian order so
// bbolt's natural byte-order iteration doubles as numeric iteration,
// exactly the convention channeldb/channel.go uses for its own composite
// keys (see its use of encoding/binary.BigEndian throughout).
func beUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func parseUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func beUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func parseUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
