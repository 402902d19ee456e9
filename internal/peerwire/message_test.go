package peerwire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, m *Message) *Message {
	t.Helper()
	got, err := ReadMessage(bytes.NewReader(m.Serialize()))
	require.NoError(t, err)
	return got
}

func TestRoundTripInterested(t *testing.T) {
	m := &Message{ID: Interested}
	got := roundTrip(t, m)
	assert.Equal(t, m.ID, got.ID)
	assert.Empty(t, got.Payload)
}

func TestRoundTripRequest(t *testing.T) {
	m := NewRequest(3, 16384, 16384)
	got := roundTrip(t, m)
	assert.Equal(t, Request, got.ID)
	idx, begin, length, err := parseRequest(got)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), idx)
	assert.Equal(t, uint32(16384), begin)
	assert.Equal(t, uint32(16384), length)
}

func TestRoundTripPiece(t *testing.T) {
	payload := []byte("hello block")
	m := &Message{ID: Piece, Payload: append(append(make([]byte, 0, 8+len(payload)), 0, 0, 0, 5, 0, 0, 0, 0), payload...)}
	got := roundTrip(t, m)
	idx, begin, body, err := ParsePiece(got)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), idx)
	assert.Equal(t, uint32(0), begin)
	assert.Equal(t, payload, body)
}

func TestRoundTripBitfield(t *testing.T) {
	m := &Message{ID: Bitfield, Payload: []byte{0xff, 0x00}}
	got := roundTrip(t, m)
	assert.Equal(t, Bitfield, got.ID)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestReadMessageKeepAlive(t *testing.T) {
	got, err := ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadMessageRejectsOverlongUnchoke(t *testing.T) {
	// length=2 but id=Unchoke must be length 1.
	frame := []byte{0, 0, 0, 2, byte(Unchoke), 0xAA}
	_, err := ReadMessage(bytes.NewReader(frame))
	assert.Error(t, err)
}

func TestReadMessagePassesThroughUnknownID(t *testing.T) {
	frame := []byte{0, 0, 0, 3, 0xEE, 0x01, 0x02}
	m, err := ReadMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, ID(0xEE), m.ID)
	assert.Equal(t, []byte{0x01, 0x02}, m.Payload)
}

// parseRequest mirrors ParsePiece's decoding for a Request payload, used
// only to assert the round trip above without exporting a Request parser
// nothing else in the codebase needs.
func parseRequest(m *Message) (index, begin, length uint32, err error) {
	if m.ID != Request {
		return 0, 0, 0, errors.New("expected Request")
	}
	index = binary.BigEndian.Uint32(m.Payload[0:4])
	begin = binary.BigEndian.Uint32(m.Payload[4:8])
	length = binary.BigEndian.Uint32(m.Payload[8:12])
	return index, begin, length, nil
}
