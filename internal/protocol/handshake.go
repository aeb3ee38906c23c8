package protocol

import (
	"crypto/sha1"
	"encoding"
	"errors"
)

const (
	btProtocol = "BitTorrent protocol"
	reservedN  = 8
)

// Handshake represents the initial BitTorrent wire handshake.
//
// Wire format (in bytes):
//
//	<pstrlen><pstr><reserved:8><info_hash:20><peer_id:20>
//
// Example:
//
//	19 "BitTorrent protocol" <8 zero bytes> <info_hash> <peer_id>
//
// The handshake is always the first message sent upon connecting to a peer. It
// identifies the torrent being downloaded (via info_hash) and the local peer.
type Handshake struct {
	Pstr     string          // Protocol identifier, usually "BitTorrent protocol"
	Reserved [reservedN]byte // Reserved bytes used for feature flags (DHT, Fast, Extension, etc.)
	InfoHash [sha1.Size]byte // SHA1 hash of the torrent's "info" dictionary.
	PeerID   [sha1.Size]byte // Unique 20-byte peer identifier.
}

var (
	ErrProtocolMismatch = errors.New("handshake: protocol string mismatch")
	ErrBadPstrlen       = errors.New("handshake: invalid protocol string length")
	ErrShortHandshake   = errors.New("handshake: short read")
)

var (
	_ encoding.BinaryMarshaler   = (*Handshake)(nil)
	_ encoding.BinaryUnmarshaler = (*Handshake)(nil)
)

// NewHandshake returns a canonical BitTorrent handshake using the given
// torrent info hash and local peer ID.
//
// The returned handshake uses the standard protocol identifier "BitTorrent
// protocol" and zeroed reserved bytes.
func NewHandshake(infoHash, peerID [sha1.Size]byte) *Handshake {
	return &Handshake{
		Pstr:     btProtocol,
		InfoHash: infoHash,
		PeerID:   peerID,
	}
}

// MarshalBinary encodes the handshake into its wire representation.
//
// The result can be written directly to a network connection or buffer.
// Returns ErrBadPstrlen if Pstr is empty or longer than 255 bytes.
func (h *Handshake) MarshalBinary() ([]byte, error) {
	if len(h.Pstr) == 0 || len(h.Pstr) > 255 {
		return nil, ErrBadPstrlen
	}

	n := 1 + len(h.Pstr) + reservedN + sha1.Size + sha1.Size
	buf := make([]byte, n)

	buf[0] = byte(len(h.Pstr))
	offset := 1
	offset += copy(buf[offset:], []byte(h.Pstr))
	offset += copy(buf[offset:], make([]byte, reservedN))
	offset += copy(buf[offset:], h.InfoHash[:])
	offset += copy(buf[offset:], h.PeerID[:])

	return buf, nil
}

// UnmarshalBinary parses a handshake from its wire format.
//
// It validates the protocol string length and ensures enough bytes are present
// for reserved, info_hash, and peer_id fields.
func (h *Handshake) UnmarshalBinary(b []byte) error {
	if len(b) < 1 {
		return ErrShortHandshake
	}

	pstrlen := int(b[0])
	if pstrlen == 0 || pstrlen > 255 {
		return ErrBadPstrlen
	}
	const tail = reservedN + sha1.Size + sha1.Size
	if len(b) < 1+pstrlen+tail {
		return ErrShortHandshake
	}

	pstrStart := 1
	pstrEnd := pstrStart + pstrlen
	copy(h.Reserved[:], b[pstrEnd:pstrEnd+reservedN])
	copy(h.InfoHash[:], b[pstrEnd+reservedN:pstrEnd+reservedN+sha1.Size])
	copy(h.PeerID[:], b[pstrEnd+reservedN+sha1.Size:])

	h.Pstr = string(b[pstrStart:pstrEnd])
	return nil
}

// HandshakeLen is the fixed wire length of a standard handshake:
// pstrlen(1) + "BitTorrent protocol"(19) + reserved(8) + infohash(20) +
// peer_id(20).
const HandshakeLen = 1 + len(btProtocol) + reservedN + sha1.Size + sha1.Size

// HandshakeDecoder accumulates bytes delivered in arbitrary-sized
// chunks, as dispatch_from_buffer does, until a complete handshake is
// available.
type HandshakeDecoder struct {
	buf []byte
}

// NewHandshakeDecoder returns an empty HandshakeDecoder.
func NewHandshakeDecoder() *HandshakeDecoder {
	return &HandshakeDecoder{}
}

// Feed appends b to the decoder's buffer. complete is true once
// HandshakeLen bytes have accumulated; hs is then the parsed
// handshake and err reports a validation failure (bad pstrlen or
// protocol string). Any bytes beyond the handshake are retained and
// returned by Remainder for the caller to feed into a message Decoder.
func (d *HandshakeDecoder) Feed(b []byte) (hs *Handshake, complete bool, err error) {
	d.buf = append(d.buf, b...)
	if len(d.buf) < HandshakeLen {
		return nil, false, nil
	}

	var h Handshake
	if uerr := h.UnmarshalBinary(d.buf[:HandshakeLen]); uerr != nil {
		return nil, true, uerr
	}
	if h.Pstr != btProtocol {
		return nil, true, ErrProtocolMismatch
	}

	d.buf = d.buf[HandshakeLen:]
	return &h, true, nil
}

// Remainder returns (and clears) any bytes fed past the handshake
// boundary, to be replayed into a protocol.Decoder.
func (d *HandshakeDecoder) Remainder() []byte {
	rem := d.buf
	d.buf = nil
	return rem
}
