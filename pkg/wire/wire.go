// Package wire is the serialized form of peer messages. Transports carry
// opaque envelope bytes; the lattice type tag lets the receiving side
// reconstruct the payload without negotiating schemas.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shinyes/deltasync/pkg/lattice"
)

// Envelope kinds.
const (
	KindDelta byte = 0x01
	KindAck   byte = 0x02
)

// Envelope is one peer message on the wire.
type Envelope struct {
	Kind        byte   `msgpack:"k"`
	MsgID       string `msgpack:"id,omitempty"`
	From        string `msgpack:"from"`
	Origin      string `msgpack:"orig,omitempty"`
	Seq         uint64 `msgpack:"seq"`
	LatticeType byte   `msgpack:"lt,omitempty"`
	Payload     []byte `msgpack:"p,omitempty"`
}

// Marshal serializes an envelope.
func Marshal(e *Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

// Unmarshal deserializes an envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

// EncodeDelta packs a delta (interval or full state) into an envelope.
func EncodeDelta(msgID, from, origin string, seq uint64, payload lattice.State) (*Envelope, error) {
	raw, err := payload.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return &Envelope{
		Kind:        KindDelta,
		MsgID:       msgID,
		From:        from,
		Origin:      origin,
		Seq:         seq,
		LatticeType: byte(payload.Type()),
		Payload:     raw,
	}, nil
}

// EncodeAck packs an acknowledgement into an envelope.
func EncodeAck(msgID, from string, seq uint64) *Envelope {
	return &Envelope{
		Kind:  KindAck,
		MsgID: msgID,
		From:  from,
		Seq:   seq,
	}
}

// DecodePayload reconstructs the lattice state carried by a delta envelope.
func (e *Envelope) DecodePayload() (lattice.State, error) {
	if e.Kind != KindDelta {
		return nil, fmt.Errorf("envelope kind 0x%02x carries no payload", e.Kind)
	}
	return lattice.FromBytes(lattice.Type(e.LatticeType), e.Payload)
}
