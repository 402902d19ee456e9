package download

import (
	"context"
	"crypto/sha1"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"goswarm/internal/metainfo"
)

type completeness int

const (
	incomplete completeness = iota
	complete
	invalid
)

// validator owns the bounded-1 block channel for one piece (§4.I). demand
// is the orchestrator's shared piece-demand counter: Done is called only
// when the piece is accepted, never on a requeue, so the piece queue can
// close the instant every piece has succeeded.
type validator struct {
	piece     metainfo.PieceSpec
	blocks    chan BlockResp
	pieceReqs chan<- PieceReq
	pieceResp chan<- PieceResp
	demand    *sync.WaitGroup
}

// run collects blocks until the piece is complete, verifies its SHA-1,
// emits a PieceResp on success, or re-queues the piece and starts over.
// It gives up, without emitting or calling demand.Done, if its block
// channel closes before the piece completes (every reader that could
// still deliver a block for this piece has exited, §9) or if ctx is
// cancelled by a fatal error elsewhere in the run (§7).
func (v *validator) run(ctx context.Context) error {
	for {
		var collected []BlockResp
		state := incomplete
		for state == incomplete {
			select {
			case <-ctx.Done():
				return nil
			case block, ok := <-v.blocks:
				if !ok {
					return nil // channel closed before completion: piece lost, see open questions
				}
				collected = append(collected, block)
				state = checkCompleteness(v.piece.Len, collected)
			}
		}

		if state == complete {
			payload := concatBlocks(collected)
			if sha1.Sum(payload) == v.piece.Hash {
				select {
				case <-ctx.Done():
					return nil
				case v.pieceResp <- PieceResp{Idx: v.piece.Idx, Bytes: payload}:
				}
				v.demand.Done()
				return nil
			}
			logrus.WithField("piece", v.piece.Idx).Debug("hash mismatch, requeueing piece")
		} else {
			logrus.WithField("piece", v.piece.Idx).Debug("invalid block layout, requeueing piece")
		}

		drainBlocks(v.blocks)
		select {
		case <-ctx.Done():
			return nil
		case v.pieceReqs <- PieceReq{Idx: v.piece.Idx, Len: v.piece.Len}:
		}
	}
}

// checkCompleteness sorts blocks by offset and classifies them per §4.I:
// a gap is Incomplete, an overlap or an over-long total is Invalid, and
// an exact contiguous cover of [0, pieceLen) is Complete.
func checkCompleteness(pieceLen uint32, blocks []BlockResp) completeness {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Begin < blocks[j].Begin })

	var begin uint32
	for _, b := range blocks {
		if b.Begin > begin {
			return incomplete
		}
		if b.Begin < begin {
			return invalid
		}
		begin += uint32(len(b.Bytes))
	}
	switch {
	case begin < pieceLen:
		return incomplete
	case begin > pieceLen:
		return invalid
	default:
		return complete
	}
}

func concatBlocks(blocks []BlockResp) []byte {
	var out []byte
	for _, b := range blocks {
		out = append(out, b.Bytes...)
	}
	return out
}

// drainBlocks discards any blocks already queued behind the one that
// completed the Invalid determination, so a fresh attempt starts clean.
// It returns as soon as the channel is empty or closed.
func drainBlocks(blocks chan BlockResp) {
	for {
		select {
		case _, ok := <-blocks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
