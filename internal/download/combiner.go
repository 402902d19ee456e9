package download

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// combine is the single piece-combiner task (§4.J). It truncates and
// owns the output file exclusively; random-order piece arrival is fine
// because every write seeks to idx*pieceLength first. It returns once
// pieceResp closes (every piece accepted) or ctx is cancelled by a fatal
// error elsewhere in the run, so a dead peer can never wedge it forever
// waiting on a piece that will never arrive.
func combine(ctx context.Context, path string, pieceLength int64, pieceResp <-chan PieceResp, onPieceDone func()) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "combiner: create output file")
	}
	defer f.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case piece, ok := <-pieceResp:
			if !ok {
				return nil
			}
			offset := int64(piece.Idx) * pieceLength
			if _, err := f.Seek(offset, 0); err != nil {
				return errors.Wrapf(err, "combiner: seek to piece %d", piece.Idx)
			}
			if _, err := f.Write(piece.Bytes); err != nil {
				return errors.Wrapf(err, "combiner: write piece %d", piece.Idx)
			}
			if onPieceDone != nil {
				onPieceDone()
			}
		}
	}
}
