// Package blacklist records which peers have contributed corrupt pieces
// and promotes repeat offenders to an outright ban. It has no teacher
// equivalent (prxssh/rabbit never attributes SHA-1 failures to a
// specific peer); the API shape follows the other small DM-owned
// components (sparsecounter, jobqueue) in taking peerid.ID handles
// rather than peer pointers, so it can't form an ownership cycle back
// into the peer table.
package blacklist

import "github.com/prxssh/rabbitdm/internal/peerid"

type pieceIdx = int

// Blacklist tracks, per peer, the set of distinct pieces it has been
// suspected of corrupting, plus the set of banned peers.
type Blacklist struct {
	suspected map[peerid.ID]map[pieceIdx]struct{}
	banned    map[peerid.ID]struct{}
}

// New returns an empty Blacklist.
func New() *Blacklist {
	return &Blacklist{
		suspected: make(map[peerid.ID]map[pieceIdx]struct{}),
		banned:    make(map[peerid.ID]struct{}),
	}
}

// Ban bans peer outright, for example when it was the sole contributor
// to a piece that failed its SHA-1 check.
func (b *Blacklist) Ban(peer peerid.ID) {
	b.banned[peer] = struct{}{}
}

// AddSuspected records peer as a suspected contributor to the corruption
// of piece. If peer is now suspected for two or more distinct pieces it
// is promoted to banned. Returns true if this call caused the ban.
func (b *Blacklist) AddSuspected(piece pieceIdx, peer peerid.ID) bool {
	if b.IsBanned(peer) {
		return false
	}

	set, ok := b.suspected[peer]
	if !ok {
		set = make(map[pieceIdx]struct{})
		b.suspected[peer] = set
	}
	set[piece] = struct{}{}

	if len(set) >= 2 {
		b.Ban(peer)
		return true
	}
	return false
}

// IsBanned reports whether peer has been banned.
func (b *Blacklist) IsBanned(peer peerid.ID) bool {
	_, ok := b.banned[peer]
	return ok
}

// SuspectedCount returns how many distinct pieces peer is currently
// suspected of having corrupted.
func (b *Blacklist) SuspectedCount(peer peerid.ID) int {
	return len(b.suspected[peer])
}

// BannedCount returns the total number of banned peers.
func (b *Blacklist) BannedCount() int {
	return len(b.banned)
}
