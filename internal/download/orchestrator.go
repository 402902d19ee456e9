package download

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"goswarm/internal/metainfo"
	"goswarm/internal/peer"
)

// Download wires the full concurrent engine (§4.K): it pre-loads the
// piece queue, connects to every provided peer address, spawns a
// validator per piece and the combiner, and blocks until every piece has
// been written or a peer task returns a fatal error.
//
// The piece queue and piece-resp channel are sized to pieceCount rather
// than left truly unbounded: a requeue can only ever replace a piece
// already dequeued, so no more than pieceCount requests are ever live at
// once. This is the Go-channel equivalent of the reference
// implementation's unbounded mpsc channels.
func Download(mi *metainfo.Metainfo, peerAddrs []string, infoHash, peerID [20]byte, outputPath string, onPieceDone func()) error {
	pieces := mi.Pieces()
	pieceCount := len(pieces)

	pieceQueue := make(chan PieceReq, pieceCount)
	pieceResp := make(chan PieceResp, pieceCount)
	blockResp := make([]chan BlockResp, pieceCount)
	for i := range blockResp {
		blockResp[i] = make(chan BlockResp, 1)
	}

	// demand counts undelivered pieces: Add once per initial enqueue,
	// Done only when a validator succeeds (never on requeue). This
	// stands in for the reference implementation's reference-counted
	// channel-close-on-drop: the queue and piece-resp channel close the
	// instant demand reaches zero, i.e. every piece has been accepted.
	var demand sync.WaitGroup
	for _, p := range pieces {
		demand.Add(1)
		pieceQueue <- PieceReq{Idx: p.Idx, Len: p.Len}
	}

	go func() {
		demand.Wait()
		close(pieceQueue)
		close(pieceResp)
	}()

	g, ctx := errgroup.WithContext(context.Background())

	// readers tracks every live readerTask. The reference implementation
	// moves its block-resp senders into the single reader task, so the
	// channel closes the moment that task ends (drain or I/O error);
	// here N readers jointly share each blockResp[i], so the channel
	// only closes once the last one of them exits — whichever way.
	var readers sync.WaitGroup

	connected := 0
	for _, addr := range peerAddrs {
		conn, err := peer.Dial(addr, infoHash, peerID)
		if err != nil {
			logrus.WithError(err).WithField("peer", addr).Warn("skipping unreachable peer")
			continue
		}
		connected++
		readers.Add(1)

		tokens := make(chan struct{}, inflightWindow)
		g.Go(func() error { return writerTask(ctx, conn, pieceQueue, tokens) })
		g.Go(func() error {
			defer readers.Done()
			return readerTask(ctx, conn, tokens, blockResp)
		})
	}
	if connected == 0 {
		return errors.New("download: no peer connections succeeded")
	}

	go func() {
		readers.Wait()
		for _, ch := range blockResp {
			close(ch)
		}
	}()

	for i, p := range pieces {
		v := &validator{
			piece:     p,
			blocks:    blockResp[i],
			pieceReqs: pieceQueue,
			pieceResp: pieceResp,
			demand:    &demand,
		}
		g.Go(func() error { return v.run(ctx) })
	}

	g.Go(func() error { return combine(ctx, outputPath, mi.Info.PieceLength, pieceResp, onPieceDone) })

	return g.Wait()
}
