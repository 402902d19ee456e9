// Package download implements the concurrent piece-fetch engine: a
// shared piece queue, per-peer writer/reader task pairs, one validator
// per piece, and a single combiner that assembles the output file
// (§4.G-§4.K).
package download

// MaxBlock is the largest block size ever requested from a peer.
const MaxBlock = 16384

// PieceReq is a request placed on the shared piece queue; peers dequeue
// these to decide what blocks to ask for.
type PieceReq struct {
	Idx uint32
	Len uint32
}

// BlockReq is a single peer-wire Request.
type BlockReq struct {
	PieceIdx uint32
	Begin    uint32
	Len      uint32
}

// BlockReqs expands p into the block-request sequence described in §4.G:
// offsets 0, MaxBlock, 2*MaxBlock, ... with the final block shortened to
// make the total equal p.Len.
func (p PieceReq) BlockReqs() []BlockReq {
	n := 0
	for begin := uint32(0); begin < p.Len; begin += MaxBlock {
		n++
	}
	if n == 0 {
		return nil
	}
	blocks := make([]BlockReq, n)
	for i := range blocks {
		blocks[i] = BlockReq{PieceIdx: p.Idx, Begin: uint32(i) * MaxBlock, Len: MaxBlock}
	}
	blocks[n-1].Len = p.Len - uint32(n-1)*MaxBlock
	return blocks
}

// BlockResp is a payload chunk received from a peer.
type BlockResp struct {
	Begin uint32
	Bytes []byte
}

// PieceResp is a validated, reassembled piece ready to be written out.
type PieceResp struct {
	Idx   uint32
	Bytes []byte
}
