// Package config holds the download manager's configuration: the
// spec's keys (infohash, peer id, listen address, pipeline/slot
// limits, storage path) plus the ambient networking and rate-limit
// knobs the teacher always carries alongside its domain config,
// trimmed of the tracker/DHT/announce knobs that have no home once
// tracker and DHT are out of scope.
package config

import (
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"time"
)

// Config holds everything a DownloadManager needs to run a single
// torrent. The zero value is not directly usable: build one with
// DefaultConfig and override InfoHash, NumPieces, PieceLength and
// TotalSize for the torrent at hand.
type Config struct {
	// ========== Identity ==========

	// InfoHash is the 20-byte torrent identity, validated against
	// every incoming handshake.
	InfoHash [sha1.Size]byte

	// MyPeerID is our 20-byte client id, sent in our own handshake.
	MyPeerID [sha1.Size]byte

	// MyAddr is our own (ip, port). add_peer refuses a peer whose
	// address matches it, to avoid connecting to ourselves.
	MyAddr netip.AddrPort

	// ========== Piece layout ==========

	// NumPieces is the total piece count for this torrent.
	NumPieces int

	// PieceLength is the byte length of every piece except possibly
	// the last, which may be shorter.
	PieceLength uint32

	// TotalSize is the full content size in bytes, used to derive the
	// last piece's length.
	TotalSize uint64

	// ========== Connection limits ==========

	// MaxPeerConnections upper-bounds the peer set.
	MaxPeerConnections int

	// MaxActivePeers bounds the choker's unchoke slots, including the
	// optimistic one.
	MaxActivePeers int

	// MaxPendingRequests caps a single peer's outstanding REQUEST
	// pipeline depth.
	MaxPendingRequests int

	// ========== Storage ==========

	// DownloadPath is where the PieceDB persists completed pieces.
	DownloadPath string

	// MaxCacheMemBytes is an advisory cache size hint passed through
	// to the PieceDB implementation; the core never enforces it.
	MaxCacheMemBytes int64

	// ========== Lifecycle ==========

	// ShutdownWhenComplete stops seeding once every piece is verified:
	// periodic becomes cleanup-only.
	ShutdownWhenComplete bool

	// ========== Timers ==========

	// RechokeInterval is how often the regular, rate-ranked choke pass
	// runs.
	RechokeInterval time.Duration

	// OptimisticUnchokeInterval is how often the optimistic slot
	// rotates.
	OptimisticUnchokeInterval time.Duration

	// KeepAliveInterval is the idle duration after which a PC sends a
	// keep-alive frame.
	KeepAliveInterval time.Duration

	// PeerTimeout is how long since last_rx_time a peer may go idle
	// before the DM removes it with reason "timeout".
	PeerTimeout time.Duration

	// ========== Ambient networking (carried, host's to honor) ==========

	// DialTimeout bounds an outbound peer_connect call.
	DialTimeout time.Duration

	// ReadTimeout/WriteTimeout are host-side socket knobs, kept here
	// so a refhost-style implementation has somewhere to read them
	// from instead of hardcoding values.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadRate/MaxDownloadRate bound host-side throttling in
	// bytes/second; 0 means unlimited. The core does not enforce
	// these itself, it only carries them for a host-side limiter.
	MaxUploadRate   int64
	MaxDownloadRate int64
}

var (
	// ErrMissingPeerID is returned by Validate when MyPeerID is the
	// zero value.
	ErrMissingPeerID = errors.New("config: my_peerid is required")
	// ErrZeroPieceLength is returned by Validate when NumPieces > 0 but
	// PieceLength is 0.
	ErrZeroPieceLength = errors.New("config: piece_length must be nonzero for a nonzero torrent")
)

// Validate checks the ConfigError-class invariants: missing peer id,
// zero piece length on a nonzero torrent. Surfaced at DM construction.
func (c Config) Validate() error {
	if c.MyPeerID == ([sha1.Size]byte{}) {
		return ErrMissingPeerID
	}
	if c.NumPieces > 0 && c.PieceLength == 0 {
		return ErrZeroPieceLength
	}
	return nil
}

// DefaultConfig returns sensible defaults for every ambient knob; the
// caller must still set InfoHash, NumPieces, PieceLength and TotalSize
// for a specific torrent.
func DefaultConfig() (Config, error) {
	peerID, err := generatePeerID()
	if err != nil {
		return Config{}, err
	}

	downloadPath, err := defaultDownloadPath()
	if err != nil {
		return Config{}, err
	}

	return Config{
		MyPeerID:                  peerID,
		MyAddr:                    netip.MustParseAddrPort("127.0.0.1:6881"),
		MaxPeerConnections:        32,
		MaxActivePeers:            32,
		MaxPendingRequests:        10,
		DownloadPath:              downloadPath,
		MaxCacheMemBytes:          1_000_000,
		ShutdownWhenComplete:      false,
		RechokeInterval:           10 * time.Second,
		OptimisticUnchokeInterval: 30 * time.Second,
		KeepAliveInterval:         90 * time.Second,
		PeerTimeout:               120 * time.Second,
		DialTimeout:               7 * time.Second,
		ReadTimeout:               30 * time.Second,
		WriteTimeout:              30 * time.Second,
		MaxUploadRate:             0,
		MaxDownloadRate:           0,
	}, nil
}

func defaultDownloadPath() (string, error) {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "rabbitdm", "downloads"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "downloads"), nil
}

func generatePeerID() ([sha1.Size]byte, error) {
	var id [sha1.Size]byte
	prefix := []byte("-RBDM-")
	copy(id[:], prefix)

	if _, err := rand.Read(id[len(prefix):]); err != nil {
		return [sha1.Size]byte{}, err
	}
	return id, nil
}
