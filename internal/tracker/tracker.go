// Package tracker announces to a torrent's tracker and decodes the
// compact peer list from its response.
package tracker

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jackpal/bencode-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const peerSize = 6 // 4 bytes IPv4 + 2 bytes big-endian port

// response mirrors the bencoded tracker reply. Key order does not matter
// here, unlike metainfo, so jackpal/bencode-go's struct-tag Unmarshal is
// the right tool — there is no info-hash-style slice to preserve.
type response struct {
	Interval int    `bencode:"interval"`
	Peers    string `bencode:"peers"`
}

// Announce issues the single tracker GET described in §4.D and returns
// the compact peer list as dialable addresses.
func Announce(announce string, infoHash, peerID [20]byte, port uint16, left int64) ([]*net.TCPAddr, error) {
	base, err := url.Parse(announce)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: announce URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("tracker: unsupported announce scheme %q", base.Scheme)
	}

	params := url.Values{
		"port":       []string{strconv.Itoa(int(port))},
		"uploaded":   []string{"0"},
		"downloaded": []string{"0"},
		"compact":    []string{"1"},
		"left":       []string{strconv.FormatInt(left, 10)},
	}
	base.RawQuery = params.Encode()
	base.RawQuery += "&info_hash=" + percentEncode(infoHash[:])
	base.RawQuery += "&peer_id=" + percentEncode(peerID[:])

	logrus.WithField("url", base.String()).Debug("announcing to tracker")
	resp, err := http.Get(base.String())
	if err != nil {
		return nil, errors.Wrap(err, "tracker: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("tracker: non-200 response: %d", resp.StatusCode)
	}

	var tr response
	if err := bencode.Unmarshal(resp.Body, &tr); err != nil {
		return nil, errors.Wrap(err, "tracker: decode response")
	}

	return parseCompactPeers([]byte(tr.Peers))
}

// percentEncode renders raw as a query value, leaving unreserved bytes
// (alnum, '-', '_', '.', '~') untouched and escaping everything else as
// uppercase %XX, per §4.D.
func percentEncode(raw []byte) string {
	var out []byte
	for _, b := range raw {
		if isUnreserved(b) {
			out = append(out, b)
		} else {
			out = append(out, []byte(fmt.Sprintf("%%%02X", b))...)
		}
	}
	return string(out)
}

func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	default:
		return false
	}
}

func parseCompactPeers(raw []byte) ([]*net.TCPAddr, error) {
	if len(raw)%peerSize != 0 {
		return nil, errors.Errorf("tracker: peers length %d not a multiple of %d", len(raw), peerSize)
	}
	n := len(raw) / peerSize
	addrs := make([]*net.TCPAddr, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*peerSize : (i+1)*peerSize]
		ip := net.IPv4(chunk[0], chunk[1], chunk[2], chunk[3])
		port := int(chunk[4])<<8 | int(chunk[5])
		addrs[i] = &net.TCPAddr{IP: ip, Port: port}
	}
	return addrs, nil
}
