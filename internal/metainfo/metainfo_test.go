package metainfo

import (
	"crypto/sha1"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTorrent(t *testing.T, length, pieceLength int64, hashes [][20]byte) []byte {
	t.Helper()
	var pieces strings.Builder
	for _, h := range hashes {
		pieces.Write(h[:])
	}
	info := "d6:lengthi" + itoa(length) + "e12:piece lengthi" + itoa(pieceLength) + "e6:pieces" +
		itoa(int64(pieces.Len())) + ":" + pieces.String() + "e"
	doc := "d8:announce18:http://tracker/ann4:info" + info + "e"
	return []byte(doc)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestParseComputesPieceGeometry(t *testing.T) {
	h1 := sha1.Sum([]byte("piece0"))
	h2 := sha1.Sum([]byte("piece1"))
	h3 := sha1.Sum([]byte("piece2"))

	raw := buildTorrent(t, 92063, 32768, [][20]byte{h1, h2, h3})

	mi, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "http://tracker/ann", mi.Announce)
	assert.Equal(t, 3, mi.PieceCount())
	assert.Equal(t, int64(26527), mi.PieceLen(2))
	assert.Equal(t, int64(32768), mi.PieceLen(0))
	assert.Equal(t, int64(65536), mi.PieceStart(2))
}

func TestInfoHashIsOverVerbatimInfoBytes(t *testing.T) {
	h1 := sha1.Sum([]byte("piece0"))
	raw := buildTorrent(t, 6, 6, [][20]byte{h1})

	mi, err := Parse(raw)
	require.NoError(t, err)

	want := sha1.Sum(mi.Info.Encoded)
	assert.Equal(t, want, mi.InfoHash())
	assert.True(t, len(mi.Info.Encoded) > 0)
	assert.Equal(t, byte('d'), mi.Info.Encoded[0])
	assert.Equal(t, byte('e'), mi.Info.Encoded[len(mi.Info.Encoded)-1])
}

func TestParseRejectsMisalignedPieces(t *testing.T) {
	doc := "d8:announce18:http://tracker/ann4:infod6:lengthi1e12:piece lengthi1e6:pieces3:abce" + "e"
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestPieces(t *testing.T) {
	h1 := sha1.Sum([]byte("piece0"))
	h2 := sha1.Sum([]byte("piece1"))
	raw := buildTorrent(t, 10, 6, [][20]byte{h1, h2})

	mi, err := Parse(raw)
	require.NoError(t, err)

	specs := mi.Pieces()
	require.Len(t, specs, 2)
	assert.Equal(t, uint32(0), specs[0].Idx)
	assert.Equal(t, uint32(6), specs[0].Len)
	assert.Equal(t, uint32(1), specs[1].Idx)
	assert.Equal(t, uint32(4), specs[1].Len)
	assert.Equal(t, h1, specs[0].Hash)
}
