// Package piece implements the fixed-size, SHA-1-checked byte ranges a
// torrent is divided into, and the block-level request/have/missing
// state machine within each one.
//
// This departs from the teacher's piece.Manager in one deliberate way:
// prxssh/rabbit tracks a *set* of owners per block to support endgame
// mode (several peers racing to deliver the same block, extras
// discarded). Endgame is out of scope here, so a block has at most one
// contributor at a time; corruption is attributed to that single
// contributor, or to every distinct peer that has ever contributed a
// block to the piece since its last reset, which is what the blacklist
// promotion rule in internal/blacklist needs.
package piece

import (
	"crypto/sha1"
	"fmt"
	"log/slog"

	"github.com/prxssh/rabbitdm/internal/peerid"
)

// MaxBlockLength is the protocol request ceiling (16 KiB).
const MaxBlockLength = 16 * 1024

// BlockState is the lifecycle of a single block within a piece.
type BlockState uint8

const (
	BlockMissing BlockState = iota
	BlockRequested
	BlockReceived
)

// WriteResult is the outcome of a WriteBlock call.
type WriteResult int

const (
	// WriteError is an I/O failure; the block stays MISSING.
	WriteError WriteResult = 0
	// WriteAccepted means the block was stored and the piece is still
	// incomplete.
	WriteAccepted WriteResult = 1
	// WriteComplete means every block is RECEIVED and the SHA-1 matched.
	WriteComplete WriteResult = 2
	// WriteCorrupt means every block is RECEIVED but the SHA-1 did not
	// match; the piece has been reset to all-MISSING.
	WriteCorrupt WriteResult = -1
)

// BlockInfo describes a block by its piece index and byte range within
// that piece.
type BlockInfo struct {
	PieceIdx uint32
	Begin    uint32
	Length   uint32
}

type block struct {
	begin       uint32
	length      uint32
	state       BlockState
	contributor peerid.ID
}

// Piece is a fixed-size byte range with an expected SHA-1 hash and
// block-level request/have state. A single peer contributes a block at
// a time; Piece never hands the same block to two peers concurrently.
type Piece struct {
	idx      uint32
	length   uint32
	hash     [sha1.Size]byte
	blocks   []block
	data     []byte
	received uint32
	verified bool

	// contributors is the set of distinct peers that have delivered at
	// least one block since the last reset, used to decide between
	// outright ban (sole contributor) and suspicion (shared).
	contributors map[peerid.ID]struct{}
}

func newPiece(idx uint32, length uint32, hash [sha1.Size]byte) *Piece {
	blockCount, _ := BlocksInPiece(length)
	blocks := make([]block, blockCount)

	for i := range blocks {
		begin, blen, _ := BlockBounds(length, uint32(i))
		blocks[i] = block{begin: begin, length: blen}
	}

	return &Piece{
		idx:          idx,
		length:       length,
		hash:         hash,
		blocks:       blocks,
		data:         make([]byte, length),
		contributors: make(map[peerid.ID]struct{}),
	}
}

// Index returns the piece's index.
func (p *Piece) Index() uint32 { return p.idx }

// Length returns the piece's byte length.
func (p *Piece) Length() uint32 { return p.length }

// Verified reports whether the piece has passed SHA-1 verification.
func (p *Piece) Verified() bool { return p.verified }

// BlockCount returns the number of blocks in the piece.
func (p *Piece) BlockCount() int { return len(p.blocks) }

// FullyRequested reports whether every block is at least REQUESTED
// (none remain MISSING), meaning a poll for a new block would fail.
func (p *Piece) FullyRequested() bool {
	for i := range p.blocks {
		if p.blocks[i].state == BlockMissing {
			return false
		}
	}
	return true
}

// PollBlockRequest returns the next MISSING block, marking it REQUESTED
// and recording peer as its contributor. ok is false if every block is
// already REQUESTED or RECEIVED.
func (p *Piece) PollBlockRequest(peer peerid.ID) (info BlockInfo, ok bool) {
	if p.verified {
		return BlockInfo{}, false
	}

	for i := range p.blocks {
		if p.blocks[i].state != BlockMissing {
			continue
		}

		p.blocks[i].state = BlockRequested
		p.blocks[i].contributor = peer

		return BlockInfo{
			PieceIdx: p.idx,
			Begin:    p.blocks[i].begin,
			Length:   p.blocks[i].length,
		}, true
	}

	return BlockInfo{}, false
}

// GivebackBlock flips a REQUESTED block back to MISSING, e.g. after a
// CHOKE or CANCEL. No-op if the block is not currently REQUESTED by
// peer or the offset doesn't name a block boundary.
func (p *Piece) GivebackBlock(begin uint32, peer peerid.ID) {
	idx, ok := p.blockIndexForBegin(begin)
	if !ok {
		return
	}

	b := &p.blocks[idx]
	if b.state == BlockRequested && b.contributor == peer {
		b.state = BlockMissing
	}
}

// GivebackAll returns every block peer currently holds as REQUESTED to
// MISSING, e.g. when peer disconnects or chokes us.
func (p *Piece) GivebackAll(peer peerid.ID) {
	for i := range p.blocks {
		if p.blocks[i].state == BlockRequested && p.blocks[i].contributor == peer {
			p.blocks[i].state = BlockMissing
		}
	}
}

// WriteBlock stores data at byte offset begin within the piece,
// attributing it to peer. When every block becomes RECEIVED it
// verifies the whole piece against the expected SHA-1, completing it
// on a match and resetting it to all-MISSING on a mismatch.
//
// contributors is non-nil only for WriteCorrupt, and lists every
// distinct peer that contributed a block since the last reset — the
// caller (the download manager) decides between an outright ban (one
// contributor) and marking each as SUSPECTED (more than one).
func (p *Piece) WriteBlock(begin uint32, data []byte, peer peerid.ID) (result WriteResult, contributors []peerid.ID) {
	idx, ok := p.blockIndexForBegin(begin)
	if !ok || uint32(len(data)) != p.blocks[idx].length {
		return WriteError, nil
	}
	if p.verified {
		return WriteAccepted, nil
	}

	b := &p.blocks[idx]
	if b.state != BlockReceived {
		copy(p.data[begin:begin+b.length], data)
		b.state = BlockReceived
		b.contributor = peer
		p.received++
		p.contributors[peer] = struct{}{}
	}

	if p.received < uint32(len(p.blocks)) {
		return WriteAccepted, nil
	}

	if sha1.Sum(p.data) != p.hash {
		contributors = p.contributorList()
		p.reset()
		return WriteCorrupt, contributors
	}

	p.verified = true
	return WriteComplete, nil
}

// Bytes returns the piece's assembled data. Only meaningful once
// Verified reports true.
func (p *Piece) Bytes() []byte {
	return p.data
}

func (p *Piece) contributorList() []peerid.ID {
	out := make([]peerid.ID, 0, len(p.contributors))
	for id := range p.contributors {
		out = append(out, id)
	}
	return out
}

func (p *Piece) reset() {
	for i := range p.blocks {
		p.blocks[i].state = BlockMissing
		p.blocks[i].contributor = peerid.Invalid
	}
	p.received = 0
	p.verified = false
	p.contributors = make(map[peerid.ID]struct{})
}

func (p *Piece) blockIndexForBegin(begin uint32) (uint32, bool) {
	idx, ok := BlockIndexForBegin(begin, p.length)
	if !ok || int(idx) >= len(p.blocks) || p.blocks[idx].begin != begin {
		return 0, false
	}
	return idx, true
}

// Manager owns every piece of a single torrent and is the unit DM talks
// to for block-level bookkeeping. It does not itself talk to a
// PieceDB; callers persist Piece.Bytes() once WriteBlock reports
// WriteComplete.
type Manager struct {
	log    *slog.Logger
	pieces []*Piece
}

// NewManager builds a Manager for npieces pieces of pieceLen bytes each
// (the last piece may be shorter, derived from totalSize), checked
// against the corresponding SHA-1 in hashes.
func NewManager(hashes [][sha1.Size]byte, pieceLen uint32, totalSize uint64, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}

	pieces := make([]*Piece, len(hashes))
	for i := range hashes {
		length, ok := PieceLengthAt(uint32(i), totalSize, pieceLen)
		if !ok {
			return nil, fmt.Errorf("piece: index %d out of bounds computing piece length", i)
		}
		pieces[i] = newPiece(uint32(i), length, hashes[i])
	}

	return &Manager{log: log.With("component", "piece"), pieces: pieces}, nil
}

// PieceCount returns the number of pieces.
func (m *Manager) PieceCount() int { return len(m.pieces) }

// Piece returns the piece at idx, or nil if out of range.
func (m *Manager) Piece(idx uint32) *Piece {
	if int(idx) >= len(m.pieces) {
		return nil
	}
	return m.pieces[idx]
}

// MarkVerifiedExternally is used during startup scanning (a PieceDB
// that already holds a complete, verified piece from a prior run) to
// fast-forward a piece straight to the complete state without
// replaying block writes.
func (m *Manager) MarkVerifiedExternally(idx uint32) {
	p := m.Piece(idx)
	if p == nil {
		return
	}
	p.verified = true
	p.received = uint32(len(p.blocks))
	for i := range p.blocks {
		p.blocks[i].state = BlockReceived
	}
}

