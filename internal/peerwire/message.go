// Package peerwire implements the BitTorrent peer-wire message codec
// (§4.F): length-prefixed frames exchanged after the handshake.
package peerwire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ID identifies a peer-wire message type.
type ID uint8

const (
	Choke         ID = 0
	Unchoke       ID = 1
	Interested    ID = 2
	NotInterested ID = 3
	Have          ID = 4
	Bitfield      ID = 5
	Request       ID = 6
	Piece         ID = 7
	Cancel        ID = 8
)

// Message is one peer-wire frame. A nil *Message read from ReadMessage
// represents a zero-length keep-alive.
type Message struct {
	ID      ID
	Payload []byte
}

// Serialize renders m as length:u32_be | id:u8 | payload. A nil receiver
// serializes to a zero-length keep-alive frame.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// ReadMessage reads one frame from r. It returns (nil, nil) for a
// zero-length keep-alive, and otherwise validates the fixed-length
// messages' sizes per the §4.F table; unknown ids are returned as-is so
// callers can choose to discard them, keeping the stream framed.
func ReadMessage(r io.Reader) (*Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, errors.Wrap(err, "peerwire: read length prefix")
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "peerwire: read frame body")
	}

	m := &Message{ID: ID(body[0]), Payload: body[1:]}
	if err := validate(m, length); err != nil {
		return nil, err
	}
	return m, nil
}

func validate(m *Message, length uint32) error {
	switch m.ID {
	case Unchoke, Interested:
		if length != 1 {
			return errors.Errorf("peerwire: message id %d must have length 1, got %d", m.ID, length)
		}
	case Request:
		if length != 13 {
			return errors.Errorf("peerwire: Request must have length 13, got %d", length)
		}
	case Piece:
		if length < 9 {
			return errors.Errorf("peerwire: Piece must have length >= 9, got %d", length)
		}
	}
	return nil
}

// ParsePiece extracts (index, begin, bytes) from a Piece message.
func ParsePiece(m *Message) (index, begin uint32, payload []byte, err error) {
	if m.ID != Piece {
		return 0, 0, nil, errors.Errorf("peerwire: expected Piece, got id %d", m.ID)
	}
	index = binary.BigEndian.Uint32(m.Payload[0:4])
	begin = binary.BigEndian.Uint32(m.Payload[4:8])
	payload = m.Payload[8:]
	return index, begin, payload, nil
}

// NewRequest builds a Request message for one block.
func NewRequest(index, begin, length uint32) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	binary.BigEndian.PutUint32(payload[8:12], length)
	return &Message{ID: Request, Payload: payload}
}
