package download

import (
	"context"
	"crypto/sha1"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goswarm/internal/metainfo"
)

func TestCheckCompletenessGapIsIncomplete(t *testing.T) {
	blocks := []BlockResp{{Begin: 0, Bytes: make([]byte, 4)}}
	assert.Equal(t, incomplete, checkCompleteness(8, blocks))
}

func TestCheckCompletenessOverlapIsInvalid(t *testing.T) {
	blocks := []BlockResp{
		{Begin: 0, Bytes: make([]byte, 4)},
		{Begin: 2, Bytes: make([]byte, 4)},
	}
	assert.Equal(t, invalid, checkCompleteness(8, blocks))
}

func TestCheckCompletenessExactCoverIsComplete(t *testing.T) {
	blocks := []BlockResp{
		{Begin: 4, Bytes: make([]byte, 4)},
		{Begin: 0, Bytes: make([]byte, 4)},
	}
	assert.Equal(t, complete, checkCompleteness(8, blocks))
}

func TestCheckCompletenessOverlongIsInvalid(t *testing.T) {
	blocks := []BlockResp{{Begin: 0, Bytes: make([]byte, 9)}}
	assert.Equal(t, invalid, checkCompleteness(8, blocks))
}

func TestValidatorEmitsOnMatchingHash(t *testing.T) {
	payload := []byte("0123456789abcdef")
	hash := sha1.Sum(payload)

	blocks := make(chan BlockResp, 4)
	pieceResp := make(chan PieceResp, 1)
	pieceReqs := make(chan PieceReq, 1)
	var demand sync.WaitGroup
	demand.Add(1)

	v := &validator{
		piece:     metainfo.PieceSpec{Idx: 0, Len: uint32(len(payload)), Hash: hash},
		blocks:    blocks,
		pieceReqs: pieceReqs,
		pieceResp: pieceResp,
		demand:    &demand,
	}

	blocks <- BlockResp{Begin: 0, Bytes: payload[:8]}
	blocks <- BlockResp{Begin: 8, Bytes: payload[8:]}

	done := make(chan struct{})
	go func() { v.run(context.Background()); close(done) }()

	got := <-pieceResp
	assert.Equal(t, payload, got.Bytes)
	<-done
}

func TestValidatorRequeuesOnHashMismatch(t *testing.T) {
	payload := []byte("mismatched-bytes")
	wrongHash := sha1.Sum([]byte("not-the-same-bytes-at-all"))

	blocks := make(chan BlockResp, 1)
	pieceResp := make(chan PieceResp, 1)
	pieceReqs := make(chan PieceReq, 1)
	var demand sync.WaitGroup
	demand.Add(1)

	v := &validator{
		piece:     metainfo.PieceSpec{Idx: 3, Len: uint32(len(payload)), Hash: wrongHash},
		blocks:    blocks,
		pieceReqs: pieceReqs,
		pieceResp: pieceResp,
		demand:    &demand,
	}

	blocks <- BlockResp{Begin: 0, Bytes: payload}

	go v.run(context.Background())

	req := <-pieceReqs
	require.Equal(t, uint32(3), req.Idx)
	close(blocks)
}
