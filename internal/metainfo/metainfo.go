// Package metainfo parses .torrent files and derives the piece geometry
// an orchestrator needs to fetch and verify a payload.
package metainfo

import (
	"crypto/sha1"

	"github.com/pkg/errors"

	"goswarm/internal/bencode"
)

const hashSize = 20

// PieceSpec is an immutable descriptor of one piece to be fetched.
type PieceSpec struct {
	Idx  uint32
	Len  uint32
	Hash [hashSize]byte
}

// Info is the parsed `info` dictionary plus its verbatim source bytes.
type Info struct {
	Length      int64
	PieceLength int64
	PieceHashes [][hashSize]byte
	Encoded     []byte
}

// Metainfo is the parsed view of a .torrent file.
type Metainfo struct {
	Announce string
	Info     Info
}

// Parse decodes a bencoded .torrent byte slice, reading announce and
// entering the info dictionary in structured mode (§4.C) so that
// info.encoded captures the dictionary's exact source bytes instead of a
// re-serialization of the parsed fields.
func Parse(b []byte) (*Metainfo, error) {
	d := bencode.NewDecoder(b)

	if _, err := d.StartDict(); err != nil {
		return nil, errors.Wrap(err, "metainfo: top-level dictionary")
	}
	if err := d.FindKey("announce"); err != nil {
		return nil, errors.Wrap(err, "metainfo")
	}
	announce, err := d.ReadString()
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: announce")
	}
	if err := d.FindKey("info"); err != nil {
		return nil, errors.Wrap(err, "metainfo")
	}

	infoStart, err := d.StartDict()
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: info dictionary")
	}
	if err := d.FindKey("length"); err != nil {
		return nil, errors.Wrap(err, "metainfo: info.length")
	}
	length, err := d.ReadInteger()
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: info.length")
	}
	if err := d.FindKey("piece length"); err != nil {
		return nil, errors.Wrap(err, "metainfo: info.piece length")
	}
	pieceLength, err := d.ReadInteger()
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: info.piece length")
	}
	if err := d.FindKey("pieces"); err != nil {
		return nil, errors.Wrap(err, "metainfo: info.pieces")
	}
	piecesRaw, err := d.ReadStringBytes()
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: info.pieces")
	}
	if len(piecesRaw)%hashSize != 0 {
		return nil, errors.Errorf("metainfo: info.pieces length %d not a multiple of %d", len(piecesRaw), hashSize)
	}

	encoded, err := d.FinishDict(infoStart)
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: info dictionary")
	}

	if pieceLength <= 0 {
		return nil, errors.New("metainfo: info.piece length must be positive")
	}
	if length < 0 {
		return nil, errors.New("metainfo: info.length must not be negative")
	}

	n := len(piecesRaw) / hashSize
	hashes := make([][hashSize]byte, n)
	for i := 0; i < n; i++ {
		copy(hashes[i][:], piecesRaw[i*hashSize:(i+1)*hashSize])
	}

	return &Metainfo{
		Announce: announce,
		Info: Info{
			Length:      length,
			PieceLength: pieceLength,
			PieceHashes: hashes,
			Encoded:     encoded,
		},
	}, nil
}

// InfoHash is the SHA-1 digest of the verbatim info dictionary bytes —
// the identity used against trackers and peers.
func (m *Metainfo) InfoHash() [hashSize]byte {
	return sha1.Sum(m.Info.Encoded)
}

// PieceCount is len(PieceHashes). For a well-formed torrent this equals
// ceil(length / piece_length); Parse does not check that it does.
func (m *Metainfo) PieceCount() int {
	return len(m.Info.PieceHashes)
}

// PieceStart returns the byte offset of piece i within the payload.
func (m *Metainfo) PieceStart(i int) int64 {
	return int64(i) * m.Info.PieceLength
}

// PieceLen returns the length of piece i, shorter than PieceLength only
// for the final piece.
func (m *Metainfo) PieceLen(i int) int64 {
	remaining := m.Info.Length - m.PieceStart(i)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > m.Info.PieceLength {
		return m.Info.PieceLength
	}
	return remaining
}

// Pieces returns the full PieceSpec sequence.
func (m *Metainfo) Pieces() []PieceSpec {
	specs := make([]PieceSpec, m.PieceCount())
	for i := range specs {
		specs[i] = PieceSpec{
			Idx:  uint32(i),
			Len:  uint32(m.PieceLen(i)),
			Hash: m.Info.PieceHashes[i],
		}
	}
	return specs
}
