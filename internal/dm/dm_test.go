package dm

import (
	"crypto/sha1"
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prxssh/rabbitdm/internal/config"
	"github.com/prxssh/rabbitdm/internal/peerid"
	"github.com/prxssh/rabbitdm/internal/peermgr"
	"github.com/prxssh/rabbitdm/internal/protocol"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)

	var info [sha1.Size]byte
	copy(info[:], []byte("test_info_hash_12345"))
	cfg.InfoHash = info
	cfg.MyAddr = netip.MustParseAddrPort("10.0.0.1:6881")
	return cfg
}

// fakeHost is a minimal host harness recording every frame sent to each
// net-handle, enough to drive DispatchFromBuffer without a real socket.
type fakeHost struct {
	mu   sync.Mutex
	sent map[peermgr.NetHandle][][]byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{sent: make(map[peermgr.NetHandle][][]byte)}
}

func (f *fakeHost) send(handle peermgr.NetHandle, b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.sent[handle] = append(f.sent[handle], cp)
	return true
}

func (f *fakeHost) callbacks() Callbacks {
	return Callbacks{
		Connect: func(addr netip.AddrPort, onConnect func(peermgr.NetHandle), onFail func(string)) {},
		Send:    f.send,
		CallExclusively: func(lockSlot *sync.Mutex, fn func()) {
			lockSlot.Lock()
			defer lockSlot.Unlock()
			fn()
		},
		Log: func(src, line string) {},
	}
}

func newEmptyDM(t *testing.T) (*DM, config.Config) {
	t.Helper()
	cfg := testConfig(t)
	d, err := New(cfg, nil, nil)
	require.NoError(t, err)

	d.SetCallbacks(newFakeHost().callbacks())
	d.SetPieceSelector(nil)
	return d, cfg
}

func TestAddPeerRefusesSelfConnect(t *testing.T) {
	require := require.New(t)
	d, cfg := newEmptyDM(t)

	_, err := d.AddPeer(cfg.MyAddr, "h1")
	require.ErrorIs(err, ErrSelfConnect)
}

func TestAddPeerRefusesDuplicateAddr(t *testing.T) {
	require := require.New(t)
	d, _ := newEmptyDM(t)
	addr := netip.MustParseAddrPort("10.0.0.2:6881")

	_, err := d.AddPeer(addr, "h1")
	require.NoError(err)

	_, err = d.AddPeer(addr, "h2")
	require.ErrorIs(err, ErrDuplicatePeer)
}

func TestDispatchFromBufferUnknownHandleReturnsZero(t *testing.T) {
	d, _ := newEmptyDM(t)

	got := d.DispatchFromBuffer("nobody-home", []byte{0, 0, 0, 0})
	require.Equal(t, 0, got)
}

// newHandshakedPeer adds an inbound peer, completes its handshake, and
// returns the resulting *peermgr.Peer so a test can go straight to
// exercising post-handshake message handling.
func newHandshakedPeer(t *testing.T, d *DM, cfg config.Config, addr netip.AddrPort, handle peermgr.NetHandle) *peermgr.Peer {
	t.Helper()
	require := require.New(t)

	p, err := d.AddPeer(addr, handle)
	require.NoError(err)

	var remoteID [sha1.Size]byte
	copy(remoteID[:], []byte("remote_peer_id_seed_"))
	hs := protocol.NewHandshake(cfg.InfoHash, remoteID)
	hb, err := hs.MarshalBinary()
	require.NoError(err)

	got := d.DispatchFromBuffer(handle, hb)
	require.Equal(1, got)

	return p
}

func TestCorruptSingleContributorPieceIsBannedAndReset(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	cfg.NumPieces = 1
	cfg.PieceLength = 8
	cfg.TotalSize = 8

	correct := []byte("abcdefgh")
	hash := sha1.Sum(correct)

	d, err := New(cfg, [][sha1.Size]byte{hash}, nil)
	require.NoError(err)
	d.SetCallbacks(newFakeHost().callbacks())
	d.SetPieceSelector(nil)

	addr := netip.MustParseAddrPort("10.0.0.2:6881")
	p := newHandshakedPeer(t, d, cfg, addr, "h1")

	bad := []byte("XXXXXXXX")
	msg := protocol.MessagePiece(0, 0, bad)
	mb, err := msg.MarshalBinary()
	require.NoError(err)

	got := d.DispatchFromBuffer("h1", mb)
	require.Equal(1, got)

	require.True(d.bl.IsBanned(p.ID), "expected sole contributor %v to be banned", p.ID)

	pc := d.pieces.Piece(0)
	require.False(pc.Verified(), "piece should have reset to unverified after a corrupt write")
	require.False(pc.FullyRequested(), "a reset piece should have every block back to MISSING")

	d.RemovePeer(p.ID, "test teardown")

	_, err = d.AddPeer(addr, "h1-again")
	require.ErrorIs(err, ErrBannedPeer, "a reconnect from a banned address must be refused even after its peerid.ID is gone")
}

func TestAddPeerRefusesBannedAddress(t *testing.T) {
	require := require.New(t)

	d, _ := newEmptyDM(t)
	addr := netip.MustParseAddrPort("10.0.0.9:6881")

	p, err := d.AddPeer(addr, "h1")
	require.NoError(err)

	d.banPeer(p.ID)
	d.RemovePeer(p.ID, "test teardown")

	_, err = d.AddPeer(addr, "h2")
	require.ErrorIs(err, ErrBannedPeer)
}

func TestCompletePieceBroadcastsHaveAndMarksProgress(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	cfg.NumPieces = 1
	cfg.PieceLength = 8
	cfg.TotalSize = 8

	data := []byte("abcdefgh")
	hash := sha1.Sum(data)

	d, err := New(cfg, [][sha1.Size]byte{hash}, nil)
	require.NoError(err)
	host := newFakeHost()
	d.SetCallbacks(host.callbacks())
	d.SetPieceSelector(nil)

	addrA := netip.MustParseAddrPort("10.0.0.2:6881")
	addrB := netip.MustParseAddrPort("10.0.0.3:6881")
	_ = newHandshakedPeer(t, d, cfg, addrA, "ha")
	newHandshakedPeer(t, d, cfg, addrB, "hb")

	msg := protocol.MessagePiece(0, 0, data)
	mb, err := msg.MarshalBinary()
	require.NoError(err)

	got := d.DispatchFromBuffer("ha", mb)
	require.Equal(1, got)

	require.True(d.pieces.Piece(0).Verified(), "expected piece 0 to verify")
	require.Equal(1, d.progress.CompletedCount())

	host.mu.Lock()
	defer host.mu.Unlock()
	require.NotEmpty(host.sent["hb"], "expected a HAVE broadcast sent to the other peer")
	want, err := protocol.MessageHave(0).MarshalBinary()
	require.NoError(err)
	require.Contains(host.sent["hb"], want, "expected a HAVE(0) frame among those sent to the other peer")
}

func TestRemovePeerGivesBackInFlightBlocks(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	cfg.NumPieces = 1
	cfg.PieceLength = 8
	cfg.TotalSize = 8

	data := []byte("abcdefgh")
	hash := sha1.Sum(data)

	d, err := New(cfg, [][sha1.Size]byte{hash}, nil)
	require.NoError(err)
	d.SetCallbacks(newFakeHost().callbacks())
	d.SetPieceSelector(nil)

	addr := netip.MustParseAddrPort("10.0.0.2:6881")
	p := newHandshakedPeer(t, d, cfg, addr, "h1")

	// The peer tells us it has piece 0, and we poll a block request
	// for it directly (bypassing the choke/unchoke dance, which is
	// covered in internal/peerconn and internal/choker's own tests).
	d.sel.PeerHavePiece(p.ID, 0)
	p.PC.OnUnchoke()
	d.pollBlock(p.ID)

	require.Len(d.activePieces[p.ID], 1)

	d.RemovePeer(p.ID, "test teardown")

	_, ok := d.activePieces[p.ID]
	require.False(ok, "activePieces should be cleared after RemovePeer")

	pc := d.pieces.Piece(0)
	blk, ok := pc.PollBlockRequest(peerid.Invalid)
	require.True(ok)
	require.EqualValues(0, blk.Begin, "expected block 0 to be MISSING again and pollable after giveback")
}
