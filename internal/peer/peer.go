// Package peer implements the handshake frame and the per-connection
// negotiation that brings a peer session to a request-ready state
// (§4.E).
package peer

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"goswarm/internal/bitfield"
	"goswarm/internal/peerwire"
)

const protocol = "BitTorrent protocol"

// dialTimeout bounds the initial TCP connect and handshake exchange.
// During negotiation, the wait for a Bitfield has its own 5-second
// deadline; the wait for Unchoke has none.
const dialTimeout = 3 * time.Second

// Handshake is the fixed 68-byte frame exchanged before any peer-wire
// message.
type Handshake struct {
	Pstr     string
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds the outgoing handshake frame for a connection.
func NewHandshake(infoHash, peerID [20]byte) *Handshake {
	return &Handshake{Pstr: protocol, InfoHash: infoHash, PeerID: peerID}
}

// Serialize renders h as the 68-byte wire frame.
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, len(h.Pstr)+49)
	cursor := 1
	buf[0] = byte(len(h.Pstr))
	cursor += copy(buf[cursor:], h.Pstr)
	cursor += copy(buf[cursor:], make([]byte, 8))
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// ReadHandshake reads a handshake frame from r.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "peer: read handshake length")
	}
	pstrlen := int(lenBuf[0])

	rest := make([]byte, pstrlen+48)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, errors.Wrap(err, "peer: read handshake body")
	}

	h := &Handshake{Pstr: string(rest[:pstrlen])}
	cursor := pstrlen + 8
	copy(h.InfoHash[:], rest[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], rest[cursor:cursor+20])
	return h, nil
}

// Conn is a handshaked, negotiated peer session: a single TCP connection
// whose read and write halves are each wrapped with buffering, ready for
// block requests.
type Conn struct {
	netConn      net.Conn
	r            *bufio.Reader
	w            *bufio.Writer
	addr         string
	RemotePeerID [20]byte
	Bitfield     bitfield.Bitfield
}

// Dial connects to addr, performs the handshake, and runs the
// pre-download negotiation described in §4.E: read messages until a
// Bitfield arrives (discarding anything else, including keep-alives),
// send Interested, then read messages until Unchoke arrives.
func Dial(addr string, infoHash, peerID [20]byte) (*Conn, error) {
	logrus.WithField("peer", addr).Debug("connecting")
	netConn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "peer: dial")
	}

	c := &Conn{
		netConn: netConn,
		r:       bufio.NewReader(netConn),
		w:       bufio.NewWriter(netConn),
		addr:    addr,
	}

	remoteID, err := c.handshake(infoHash, peerID)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	c.RemotePeerID = remoteID
	logrus.WithField("peer", addr).Debug("handshake complete")

	bf, err := c.discardUntilBitfield()
	if err != nil {
		netConn.Close()
		return nil, err
	}
	c.Bitfield = bf

	if err := c.sendInterested(); err != nil {
		netConn.Close()
		return nil, err
	}
	if err := c.discardUntilUnchoke(); err != nil {
		netConn.Close()
		return nil, err
	}
	logrus.WithField("peer", addr).Debug("negotiation complete, ready for requests")

	return c, nil
}

func (c *Conn) handshake(infoHash, peerID [20]byte) ([20]byte, error) {
	c.netConn.SetDeadline(time.Now().Add(dialTimeout))
	defer c.netConn.SetDeadline(time.Time{})

	req := NewHandshake(infoHash, peerID)
	if _, err := c.w.Write(req.Serialize()); err != nil {
		return [20]byte{}, errors.Wrap(err, "peer: write handshake")
	}
	if err := c.w.Flush(); err != nil {
		return [20]byte{}, errors.Wrap(err, "peer: flush handshake")
	}

	resp, err := ReadHandshake(c.r)
	if err != nil {
		return [20]byte{}, err
	}
	if resp.Pstr != protocol {
		return [20]byte{}, errors.Errorf("peer: unexpected protocol string %q", resp.Pstr)
	}
	if !bytes.Equal(resp.InfoHash[:], infoHash[:]) {
		return [20]byte{}, errors.Errorf("peer: info-hash mismatch: got %x want %x", resp.InfoHash, infoHash)
	}

	return resp.PeerID, nil
}

func (c *Conn) discardUntilBitfield() (bitfield.Bitfield, error) {
	c.netConn.SetDeadline(time.Now().Add(5 * time.Second))
	defer c.netConn.SetDeadline(time.Time{})

	for {
		msg, err := peerwire.ReadMessage(c.r)
		if err != nil {
			return nil, errors.Wrap(err, "peer: awaiting bitfield")
		}
		if msg == nil { // keep-alive
			continue
		}
		if msg.ID == peerwire.Bitfield {
			return bitfield.Bitfield(msg.Payload), nil
		}
		logrus.WithFields(logrus.Fields{"peer": c.addr, "id": msg.ID}).Debug("discarding message before bitfield")
	}
}

func (c *Conn) discardUntilUnchoke() error {
	for {
		msg, err := peerwire.ReadMessage(c.r)
		if err != nil {
			return errors.Wrap(err, "peer: awaiting unchoke")
		}
		if msg == nil {
			continue
		}
		if msg.ID == peerwire.Unchoke {
			return nil
		}
		logrus.WithFields(logrus.Fields{"peer": c.addr, "id": msg.ID}).Debug("discarding message before unchoke")
	}
}

func (c *Conn) sendInterested() error {
	return c.writeMessage((&peerwire.Message{ID: peerwire.Interested}).Serialize())
}

// SendRequest writes a Request frame for one block.
func (c *Conn) SendRequest(index, begin, length uint32) error {
	return c.writeMessage(peerwire.NewRequest(index, begin, length).Serialize())
}

// writeMessage writes a frame and flushes it, per §4.F: message frames are
// flushed on each write.
func (c *Conn) writeMessage(frame []byte) error {
	if _, err := c.w.Write(frame); err != nil {
		return errors.Wrap(err, "peer: write message")
	}
	if err := c.w.Flush(); err != nil {
		return errors.Wrap(err, "peer: flush message")
	}
	return nil
}

// ReadMessage reads one peer-wire frame from the connection.
func (c *Conn) ReadMessage() (*peerwire.Message, error) {
	return peerwire.ReadMessage(c.r)
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.netConn.Close()
}
