package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"goswarm/internal/bencode"
	"goswarm/internal/download"
	"goswarm/internal/metainfo"
	"goswarm/internal/peer"
	"goswarm/internal/tracker"
)

const listenPort uint16 = 6881

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logrus.SetOutput(os.Stderr)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	args := flag.Args()
	if len(args) < 1 {
		fatal("usage: goswarm <decode|info|peers|handshake|download_piece|download> ...")
	}

	var err error
	switch args[0] {
	case "decode":
		err = runDecode(args[1:])
	case "info":
		err = runInfo(args[1:])
	case "peers":
		err = runPeers(args[1:])
	case "handshake":
		err = runHandshake(args[1:])
	case "download_piece":
		err = runDownloadPiece(args[1:])
	case "download":
		err = runDownload(args[1:])
	default:
		err = fmt.Errorf("unknown subcommand %q", args[0])
	}

	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	logrus.Error(msg)
	os.Exit(1)
}

func runDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("decode: usage: decode <bencoded_value>")
	}
	v, err := bencode.Decode([]byte(args[0]))
	if err != nil {
		return err
	}
	fmt.Println(v.JSON())
	return nil
}

func loadMetainfo(path string) (*metainfo.Metainfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return metainfo.Parse(raw)
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info: usage: info <torrent_file_path>")
	}
	mi, err := loadMetainfo(args[0])
	if err != nil {
		return err
	}

	hash := mi.InfoHash()
	fmt.Printf("Tracker URL: %s\n", mi.Announce)
	fmt.Printf("Length: %d\n", mi.Info.Length)
	fmt.Printf("Info Hash: %s\n", hex.EncodeToString(hash[:]))
	fmt.Printf("Piece Length: %d\n", mi.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, h := range mi.Info.PieceHashes {
		fmt.Println(hex.EncodeToString(h[:]))
	}
	return nil
}

func runPeers(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("peers: usage: peers <torrent_file_path>")
	}
	mi, err := loadMetainfo(args[0])
	if err != nil {
		return err
	}

	peerID := generatePeerID()
	addrs, err := tracker.Announce(mi.Announce, mi.InfoHash(), peerID, listenPort, mi.Info.Length)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		fmt.Println(a.String())
	}
	return nil
}

func runHandshake(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("handshake: usage: handshake <torrent_file_path> <host:port>")
	}
	mi, err := loadMetainfo(args[0])
	if err != nil {
		return err
	}

	peerID := generatePeerID()
	conn, err := peer.Dial(args[1], mi.InfoHash(), peerID)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Peer ID: %s\n", hex.EncodeToString(conn.RemotePeerID[:]))
	return nil
}

func runDownloadPiece(args []string) error {
	out, rest, err := parseOutputFlag(args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("download_piece: usage: download_piece -o <out> <torrent_file_path> <piece_no>")
	}
	mi, err := loadMetainfo(rest[0])
	if err != nil {
		return err
	}
	pieceIdx, err := strconv.Atoi(rest[1])
	if err != nil {
		return fmt.Errorf("download_piece: invalid piece index %q", rest[1])
	}
	if pieceIdx < 0 || pieceIdx >= mi.PieceCount() {
		return fmt.Errorf("download_piece: piece index %d out of range [0, %d)", pieceIdx, mi.PieceCount())
	}

	peerID := generatePeerID()
	infoHash := mi.InfoHash()
	addrs, err := tracker.Announce(mi.Announce, infoHash, peerID, listenPort, mi.Info.Length)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return fmt.Errorf("download_piece: tracker returned no peers")
	}

	blockCount := len((download.PieceReq{Len: mi.Pieces()[pieceIdx].Len}).BlockReqs())
	bar := progressbar.Default(int64(blockCount), fmt.Sprintf("piece %d", pieceIdx))
	defer bar.Close()

	if err := download.DownloadPiece(mi, addrs[0].String(), infoHash, peerID, pieceIdx, out, func() { bar.Add(1) }); err != nil {
		return err
	}
	fmt.Printf("Piece %d downloaded to %s\n", pieceIdx, out)
	return nil
}

func runDownload(args []string) error {
	out, rest, err := parseOutputFlag(args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("download: usage: download -o <out> <torrent_file_path>")
	}
	mi, err := loadMetainfo(rest[0])
	if err != nil {
		return err
	}

	peerID := generatePeerID()
	infoHash := mi.InfoHash()
	addrs, err := tracker.Announce(mi.Announce, infoHash, peerID, listenPort, mi.Info.Length)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return fmt.Errorf("download: tracker returned no peers")
	}

	addrStrs := make([]string, len(addrs))
	for i, a := range addrs {
		addrStrs[i] = a.String()
	}

	pieceCount := mi.PieceCount()
	bar := progressbar.Default(int64(pieceCount), "downloading")
	defer bar.Close()

	if err := download.Download(mi, addrStrs, infoHash, peerID, out, func() { bar.Add(1) }); err != nil {
		return err
	}
	fmt.Printf("Downloaded %s to %s\n", rest[0], out)
	return nil
}

// parseOutputFlag pulls a leading "-o <path>" pair out of args, matching
// the "<subcommand> -o <out> ..." surface used by download_piece and
// download. flag.FlagSet.Parse stops at the first positional argument,
// so -o must come before the torrent path and piece index, not after.
func parseOutputFlag(args []string) (out string, rest []string, err error) {
	fs := flag.NewFlagSet("output", flag.ContinueOnError)
	o := fs.String("o", "", "output path")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	if *o == "" {
		return "", nil, fmt.Errorf("missing required -o <out> flag")
	}
	return *o, fs.Args(), nil
}

// generatePeerID produces a random 20-byte peer identity prefixed with a
// client tag, the same shape the teacher and sibling clients use.
func generatePeerID() [20]byte {
	var id [20]byte
	copy(id[:], "-GS0001-")
	rand.Read(id[8:])
	return id
}
