package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockReqsEvenlyDivides(t *testing.T) {
	req := PieceReq{Idx: 2, Len: MaxBlock * 3}
	blocks := req.BlockReqs()
	require.Len(t, blocks, 3)

	var total uint32
	for i, b := range blocks {
		assert.Equal(t, uint32(2), b.PieceIdx)
		assert.Equal(t, uint32(i)*MaxBlock, b.Begin)
		total += b.Len
	}
	assert.Equal(t, req.Len, total)
	assert.Equal(t, uint32(MaxBlock), blocks[2].Len)
}

func TestBlockReqsShortLastBlock(t *testing.T) {
	req := PieceReq{Idx: 0, Len: MaxBlock*2 + 100}
	blocks := req.BlockReqs()
	require.Len(t, blocks, 3)
	assert.Equal(t, uint32(100), blocks[2].Len)

	var total uint32
	for _, b := range blocks {
		total += b.Len
	}
	assert.Equal(t, req.Len, total)
}

func TestBlockReqsContiguous(t *testing.T) {
	req := PieceReq{Idx: 0, Len: MaxBlock*4 + 1}
	blocks := req.BlockReqs()
	var cursor uint32
	for _, b := range blocks {
		assert.Equal(t, cursor, b.Begin)
		cursor += b.Len
	}
	assert.Equal(t, req.Len, cursor)
}

func TestBlockReqsZeroLength(t *testing.T) {
	req := PieceReq{Idx: 0, Len: 0}
	assert.Empty(t, req.BlockReqs())
}
