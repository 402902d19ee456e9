package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentEncodeLeavesUnreservedBytesAlone(t *testing.T) {
	assert.Equal(t, "abcABC019-_.~", percentEncode([]byte("abcABC019-_.~")))
}

func TestPercentEncodeEscapesEverythingElse(t *testing.T) {
	raw := []byte{0x00, 0xff, ' ', '/'}
	assert.Equal(t, "%00%FF%20%2F", percentEncode(raw))
}

func TestParseCompactPeers(t *testing.T) {
	raw := []byte{127, 0, 0, 1, 0x1A, 0xE1, 10, 0, 0, 5, 0x00, 0x50}
	addrs, err := parseCompactPeers(raw)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "127.0.0.1", addrs[0].IP.String())
	assert.Equal(t, 0x1AE1, addrs[0].Port)
	assert.Equal(t, "10.0.0.5", addrs[1].IP.String())
	assert.Equal(t, 80, addrs[1].Port)
}

func TestParseCompactPeersRejectsMisalignedLength(t *testing.T) {
	_, err := parseCompactPeers([]byte{1, 2, 3})
	assert.Error(t, err)
}
