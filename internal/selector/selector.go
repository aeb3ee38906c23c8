// Package selector decides which piece index a peer should be asked for
// next. It never touches I/O or block-level state; it is a pure index
// over "who has what", updated as HAVE/BITFIELD messages and
// completions arrive, consulted by the download manager once per
// PollBlock job against the piece.Manager's fully-requested state.
//
// Grounded on prxssh/rabbit's piece.Picker and its three
// selectSequential/selectRandom/selectRarestFirst strategies, narrowed
// from block-level picking (prxssh/rabbit's Picker hands out
// (piece,begin,length) requests directly) down to piece-level selection
// only, since here the piece/block bookkeeping lives in internal/piece
// and the selector's sole job is choosing an idx.
package selector

import (
	"math/rand"

	"github.com/prxssh/rabbitdm/internal/bitfield"
	"github.com/prxssh/rabbitdm/internal/peerid"
)

// Strategy selects which pluggable piece-ordering policy a Selector
// uses.
type Strategy int

const (
	RarestFirst Strategy = iota
	Sequential
	Random
)

// Selector tracks per-peer piece availability and chooses the next
// piece index to request for a given peer.
type Selector struct {
	strategy Strategy

	size int

	weHave       bitfield.Bitfield
	peerHas      map[peerid.ID]bitfield.Bitfield
	availability *availabilityBuckets

	rng *rand.Rand
}

// New constructs a Selector for `size` pieces using the given strategy.
// maxPeers bounds the rarest-first availability buckets; it is ignored
// by the other two strategies.
func New(size int, strategy Strategy, maxPeers int) *Selector {
	return &Selector{
		strategy:     strategy,
		size:         size,
		weHave:       bitfield.New(size),
		peerHas:      make(map[peerid.ID]bitfield.Bitfield),
		availability: newAvailabilityBuckets(size, maxPeers),
		rng:          rand.New(rand.NewSource(1)),
	}
}

// AddPeer registers a peer with an empty bitfield. Safe to call more
// than once; subsequent calls are a no-op for an already-known peer.
func (s *Selector) AddPeer(peer peerid.ID) {
	if _, ok := s.peerHas[peer]; ok {
		return
	}
	s.peerHas[peer] = bitfield.New(s.size)
}

// RemovePeer forgets peer and reverses its contribution to every
// piece's availability count.
func (s *Selector) RemovePeer(peer peerid.ID) {
	bf, ok := s.peerHas[peer]
	if !ok {
		return
	}

	for i := 0; i < s.size; i++ {
		if bf.Has(i) {
			s.availability.Move(i, -1)
		}
	}
	delete(s.peerHas, peer)
}

// HavePiece records that we now have piece idx ourselves, removing it
// from future eligibility regardless of strategy.
func (s *Selector) HavePiece(idx int) {
	if idx < 0 || idx >= s.size {
		return
	}
	s.weHave.Set(idx)
}

// PeerHavePiece records that peer has piece idx, bumping its
// availability count the first time this is learned.
func (s *Selector) PeerHavePiece(peer peerid.ID, idx int) {
	if idx < 0 || idx >= s.size {
		return
	}

	bf, ok := s.peerHas[peer]
	if !ok {
		bf = bitfield.New(s.size)
		s.peerHas[peer] = bf
	}
	if bf.Has(idx) {
		return
	}
	bf.Set(idx)
	s.availability.Move(idx, 1)
}

// PollPiece returns the next piece index eligible for peer to be asked
// for: peer has it, we don't, and it isn't already fully requested.
// fullyRequested reports, for a given piece index, whether every block
// in it has already been assigned to some peer (downloading or
// verified) -- the caller's piece.Manager is the source of truth for
// this, not the selector, so a piece whose request burst stalled
// partway through (pending-request ceiling, choke, disconnect) stays
// eligible for re-selection instead of being stranded. Returns
// ok=false if no eligible piece exists.
func (s *Selector) PollPiece(peer peerid.ID, fullyRequested func(idx int) bool) (idx int, ok bool) {
	peerBF, known := s.peerHas[peer]
	if !known {
		return 0, false
	}

	eligible := func(i int) bool {
		return peerBF.Has(i) && !s.weHave.Has(i) && !fullyRequested(i)
	}

	var picked int
	found := false

	switch s.strategy {
	case Sequential:
		for i := 0; i < s.size; i++ {
			if eligible(i) {
				picked, found = i, true
				break
			}
		}

	case Random:
		candidates := make([]int, 0)
		for i := 0; i < s.size; i++ {
			if eligible(i) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			picked, found = candidates[s.rng.Intn(len(candidates))], true
		}

	default: // RarestFirst
		s.availability.forEachNonEmptyBucketAscending(func(pieces []int) bool {
			best := -1
			for _, p := range pieces {
				if !eligible(p) {
					continue
				}
				if best == -1 || p < best {
					best = p
				}
			}
			if best != -1 {
				picked, found = best, true
				return true
			}
			return false
		})
	}

	if !found {
		return 0, false
	}

	return picked, true
}
