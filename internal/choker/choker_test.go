package choker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prxssh/rabbitdm/internal/peerid"
)

type fakePeer struct {
	down, up     float64
	interested   bool
	choking      bool
	chokeCalls   int
	unchokeCalls int
}

func (f *fakePeer) DownloadRate() float64 { return f.down }
func (f *fakePeer) UploadRate() float64   { return f.up }
func (f *fakePeer) IsInterested() bool    { return f.interested }
func (f *fakePeer) IsChoking() bool       { return f.choking }
func (f *fakePeer) Choke()                { f.choking = true; f.chokeCalls++ }
func (f *fakePeer) Unchoke()              { f.choking = false; f.unchokeCalls++ }

func TestRegularUnchokeRanksByDownloadRateDescending(t *testing.T) {
	require := require.New(t)

	c := New(Leeching, 2, time.Second, time.Hour)

	fast := &fakePeer{down: 100, interested: true, choking: true}
	slow := &fakePeer{down: 10, interested: true, choking: true}
	peers := map[peerid.ID]Peer{1: fast, 2: slow}

	base := time.Unix(1000, 0)
	c.Tick(base, peers) // arm
	c.Tick(base.Add(time.Second), peers)

	// maxActive=2 means slots = maxActive-1 = 1 regular slot.
	require.False(fast.choking, "fastest interested peer should be unchoked")
	require.True(slow.choking, "slower peer should remain choked (only 1 regular slot)")
}

func TestUninterestedPeerNeverUnchoked(t *testing.T) {
	require := require.New(t)

	c := New(Leeching, 5, time.Second, time.Hour)
	p := &fakePeer{down: 1000, interested: false, choking: true}
	peers := map[peerid.ID]Peer{1: p}

	base := time.Unix(2000, 0)
	c.Tick(base, peers)
	c.Tick(base.Add(time.Second), peers)

	require.True(p.choking, "an uninterested peer should never be unchoked by the regular pass")
}

func TestSeedingModeRanksByUploadRate(t *testing.T) {
	require := require.New(t)

	c := New(Seeding, 2, time.Second, time.Hour)
	fast := &fakePeer{up: 500, interested: true, choking: true}
	slow := &fakePeer{up: 5, interested: true, choking: true}
	peers := map[peerid.ID]Peer{1: fast, 2: slow}

	base := time.Unix(3000, 0)
	c.Tick(base, peers)
	c.Tick(base.Add(time.Second), peers)

	require.False(fast.choking, "highest upload-rate peer should be unchoked in seeding mode")
}

func TestOptimisticUnchokesAChokedInterestedPeer(t *testing.T) {
	require := require.New(t)

	c := New(Leeching, 1, time.Hour, time.Second)

	a := &fakePeer{interested: true, choking: true}
	peers := map[peerid.ID]Peer{1: a}

	base := time.Unix(4000, 0)
	c.Tick(base, peers)
	c.Tick(base.Add(time.Second), peers)

	require.False(a.choking, "the sole choked+interested peer should become the optimistic unchoke")
}

func TestOptimisticSkipsUninterestedPeers(t *testing.T) {
	require := require.New(t)

	c := New(Leeching, 1, time.Hour, time.Second)
	a := &fakePeer{interested: false, choking: true}
	peers := map[peerid.ID]Peer{1: a}

	base := time.Unix(5000, 0)
	c.Tick(base, peers)
	c.Tick(base.Add(time.Second), peers)

	require.True(a.choking, "an uninterested peer should not become the optimistic unchoke")
}
