// Package choker ranks peers and decides who gets an upload slot.
// Grounded on prxssh/rabbit's swarm.chokeLoop,
// recalculateRegularUnchokes and recalculateOptimisticUnchoke, with the
// pair of independent time.Tickers replaced by internal/eventtimer
// (the download manager owns no goroutines, so a ticker channel has
// nobody to select on it) and the sort-by-rate ranking generalized to
// run against either download or upload rate depending on Mode.
package choker

import (
	"math/rand"
	"sort"
	"time"

	"github.com/prxssh/rabbitdm/internal/eventtimer"
	"github.com/prxssh/rabbitdm/internal/peerid"
)

// Mode selects which rate a Choker ranks peers by.
type Mode int

const (
	// Leeching ranks by download rate from each peer, active while we
	// are still missing pieces.
	Leeching Mode = iota
	// Seeding ranks by upload rate to each peer, active once every
	// piece is complete.
	Seeding
)

// Peer is the view a Choker needs of a single connection. The download
// manager's PC satisfies this without the choker importing
// internal/peerconn, keeping the two decoupled per spec.md's "PC
// exposes to the choker" framing.
type Peer interface {
	DownloadRate() float64
	UploadRate() float64
	IsInterested() bool
	IsChoking() bool
	Choke()
	Unchoke()
}

// Choker periodically re-ranks peers and adjusts choke state. It owns
// no goroutine; Tick must be called once per download-manager periodic
// tick with the current peer set.
type Choker struct {
	mode      Mode
	maxActive int
	timer     *eventtimer.Timer

	optimistic peerid.ID
	hasOpt     bool

	peers map[peerid.ID]Peer
	rng   *rand.Rand
}

// New constructs a Choker for the given mode. maxActive is the total
// number of upload slots, including the optimistic one (so the regular
// ranking unchokes maxActive-1 peers, per spec.md §4.6).
func New(mode Mode, maxActive int, regularInterval, optimisticInterval time.Duration) *Choker {
	c := &Choker{
		mode:      mode,
		maxActive: maxActive,
		timer:     eventtimer.New(),
		rng:       rand.New(rand.NewSource(1)),
	}
	c.timer.Every(regularInterval, func(time.Time) { c.recalculateRegular() })
	c.timer.Every(optimisticInterval, func(time.Time) { c.recalculateOptimistic() })
	return c
}

// Tick advances the choker's clock and applies any choke/unchoke
// decisions whose interval elapsed.
func (c *Choker) Tick(now time.Time, peers map[peerid.ID]Peer) {
	c.peers = peers
	c.timer.Step(now)
	c.peers = nil
}

func (c *Choker) recalculateRegular() {
	type ranked struct {
		id   peerid.ID
		rate float64
	}

	candidates := make([]ranked, 0, len(c.peers))
	for id, p := range c.peers {
		if !p.IsInterested() {
			continue
		}
		rate := p.DownloadRate()
		if c.mode == Seeding {
			rate = p.UploadRate()
		}
		candidates = append(candidates, ranked{id, rate})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].rate > candidates[j].rate
	})

	slots := c.maxActive - 1
	if slots < 0 {
		slots = 0
	}

	top := make(map[peerid.ID]struct{}, slots)
	for i := 0; i < len(candidates) && i < slots; i++ {
		top[candidates[i].id] = struct{}{}
	}

	for id, p := range c.peers {
		_, isTop := top[id]
		isOptimistic := c.hasOpt && id == c.optimistic

		switch {
		case isTop || isOptimistic:
			if p.IsChoking() {
				p.Unchoke()
			}
		default:
			if !p.IsChoking() {
				p.Choke()
			}
		}
	}
}

func (c *Choker) recalculateOptimistic() {
	candidates := make([]peerid.ID, 0)
	for id, p := range c.peers {
		if p.IsInterested() && p.IsChoking() {
			candidates = append(candidates, id)
		}
	}

	if len(candidates) == 0 {
		c.hasOpt = false
		return
	}

	chosen := candidates[c.rng.Intn(len(candidates))]
	c.optimistic = chosen
	c.hasOpt = true
	c.peers[chosen].Unchoke()
}
