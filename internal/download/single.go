package download

import (
	"crypto/sha1"
	"os"

	"github.com/pkg/errors"

	"goswarm/internal/metainfo"
	"goswarm/internal/peer"
	"goswarm/internal/peerwire"
)

// DownloadPiece fetches a single piece from a single peer and writes
// just that piece's bytes to outputPath (the download_piece subcommand).
// It is a separate, synchronous code path rather than a one-piece call
// into Download: the full engine's piece queue, token window, and
// per-piece validator goroutine all exist to arbitrate many peers and
// many pieces at once, machinery this single-piece, single-peer request
// doesn't need.
func DownloadPiece(mi *metainfo.Metainfo, peerAddr string, infoHash, peerID [20]byte, pieceIdx int, outputPath string, onBlockDone func()) error {
	pieces := mi.Pieces()
	if pieceIdx < 0 || pieceIdx >= len(pieces) {
		return errors.Errorf("download_piece: piece index %d out of range [0, %d)", pieceIdx, len(pieces))
	}
	piece := pieces[pieceIdx]

	conn, err := peer.Dial(peerAddr, infoHash, peerID)
	if err != nil {
		return errors.Wrap(err, "download_piece: connect")
	}
	defer conn.Close()

	req := PieceReq{Idx: piece.Idx, Len: piece.Len}
	blocks := req.BlockReqs()

	collected := make([]BlockResp, 0, len(blocks))
	for _, block := range blocks {
		if err := conn.SendRequest(block.PieceIdx, block.Begin, block.Len); err != nil {
			return errors.Wrap(err, "download_piece: send request")
		}

		for {
			msg, err := conn.ReadMessage()
			if err != nil {
				return errors.Wrap(err, "download_piece: read message")
			}
			if msg == nil {
				continue // keep-alive
			}
			if msg.ID != peerwire.Piece {
				continue
			}
			idx, begin, payload, err := peerwire.ParsePiece(msg)
			if err != nil {
				return errors.Wrap(err, "download_piece")
			}
			if idx != piece.Idx {
				continue
			}
			collected = append(collected, BlockResp{Begin: begin, Bytes: payload})
			break
		}
		if onBlockDone != nil {
			onBlockDone()
		}
	}

	if checkCompleteness(piece.Len, collected) != complete {
		return errors.Errorf("download_piece: piece %d did not reassemble to the expected length", piece.Idx)
	}
	payload := concatBlocks(collected)
	if sha1.Sum(payload) != piece.Hash {
		return errors.Errorf("download_piece: piece %d failed integrity check", piece.Idx)
	}

	if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
		return errors.Wrap(err, "download_piece: write output")
	}
	return nil
}
