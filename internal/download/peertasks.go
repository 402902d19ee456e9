package download

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"goswarm/internal/peer"
	"goswarm/internal/peerwire"
)

// inflightWindow is the pipeline depth W described in §4.H.
const inflightWindow = 5

// writerTask repeatedly dequeues a PieceReq from the shared piece queue,
// expands it to blocks, and sends one token per block before writing the
// Request frame — the token channel converts pipelining into
// back-pressure against the reader half. It exits, closing tokens, once
// the piece queue is drained and closed, ctx is cancelled, or it hits a
// fatal I/O error.
func writerTask(ctx context.Context, conn *peer.Conn, queue <-chan PieceReq, tokens chan<- struct{}) error {
	defer close(tokens)
	for {
		select {
		case <-ctx.Done():
			return nil
		case pieceReq, ok := <-queue:
			if !ok {
				return nil
			}
			if !conn.Bitfield.CheckPiece(int(pieceReq.Idx)) {
				logrus.WithField("piece", pieceReq.Idx).Debug("peer bitfield does not advertise this piece, skipping request")
				continue
			}
			for _, block := range pieceReq.BlockReqs() {
				select {
				case <-ctx.Done():
					return nil
				case tokens <- struct{}{}:
				}
				if err := conn.SendRequest(block.PieceIdx, block.Begin, block.Len); err != nil {
					return errors.Wrap(err, "writer task")
				}
			}
		}
	}
}

// readerTask receives one token per expected Piece message, discarding
// any non-Piece frames (Have, keep-alive, Choke) encountered in between,
// and routes each block to the validator for its piece index. It exits
// once the token channel is closed and drained, ctx is cancelled, or it
// hits a fatal I/O error.
func readerTask(ctx context.Context, conn *peer.Conn, tokens <-chan struct{}, blockResp []chan BlockResp) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-tokens:
			if !ok {
				return nil
			}
			for {
				msg, err := conn.ReadMessage()
				if err != nil {
					return errors.Wrap(err, "reader task")
				}
				if msg == nil {
					continue // keep-alive
				}
				if msg.ID != peerwire.Piece {
					logrus.Debugf("reader task: discarding message id %d while awaiting piece", msg.ID)
					continue
				}
				idx, begin, payload, err := peerwire.ParsePiece(msg)
				if err != nil {
					return errors.Wrap(err, "reader task")
				}
				if int(idx) >= len(blockResp) {
					return errors.Errorf("reader task: piece index %d out of range", idx)
				}
				select {
				case <-ctx.Done():
					return nil
				case blockResp[idx] <- BlockResp{Begin: begin, Bytes: payload}:
				}
				break
			}
		}
	}
}
