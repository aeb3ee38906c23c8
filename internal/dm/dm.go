// Package dm implements the DownloadManager: the single-owner mediator
// that ties together peer connections, piece state, the pluggable
// selector, the choker, and the blacklist for one torrent. It spawns no
// goroutines of its own. A host drives it from two entry points —
// DispatchFromBuffer for inbound bytes and Periodic for the tick — and
// is expected to serialize both through the CallExclusively callback so
// DM's internal state never sees concurrent mutation.
//
// Grounded on prxssh/rabbit's swarm.Swarm as the thing that owns peers,
// the piece manager, and the choker, but with the goroutine-per-peer,
// channel-fanned event loop replaced by direct method calls driven by
// the host, per spec.md §5.
package dm

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/prxssh/rabbitdm/internal/bitfield"
	"github.com/prxssh/rabbitdm/internal/blacklist"
	"github.com/prxssh/rabbitdm/internal/choker"
	"github.com/prxssh/rabbitdm/internal/config"
	"github.com/prxssh/rabbitdm/internal/dmstats"
	"github.com/prxssh/rabbitdm/internal/jobqueue"
	"github.com/prxssh/rabbitdm/internal/peerconn"
	"github.com/prxssh/rabbitdm/internal/peerid"
	"github.com/prxssh/rabbitdm/internal/peermgr"
	"github.com/prxssh/rabbitdm/internal/piece"
	"github.com/prxssh/rabbitdm/internal/piecedb"
	"github.com/prxssh/rabbitdm/internal/protocol"
	"github.com/prxssh/rabbitdm/internal/selector"
	"github.com/prxssh/rabbitdm/internal/sparsecounter"
)

var (
	// ErrSelfConnect is returned by AddPeer for an address matching the
	// configured MyAddr.
	ErrSelfConnect = errors.New("dm: refusing to connect to self")
	// ErrDuplicatePeer is returned by AddPeer when a peer is already
	// connected at the given address.
	ErrDuplicatePeer = errors.New("dm: peer already connected at this address")
	// ErrBannedPeer is returned by AddPeer for an address the blacklist
	// has already banned, surfaced for a host that wants to refuse the
	// reconnect outright instead of letting it fail later.
	ErrBannedPeer = errors.New("dm: peer is banned")
	// ErrClosed is returned by any call made after Close.
	ErrClosed = errors.New("dm: download manager is closed")
)

// assertf panics with a formatted message if cond is false. Reserved
// for invariant violations that indicate a bug in DM's own wiring (a
// selector and piece manager built from different piece counts), never
// for anything a remote peer can trigger.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Callbacks is the set of capabilities a host supplies so the core
// never touches a socket or a goroutine directly. Grounded on spec.md
// §6's external-interfaces table (peer_connect, peer_send,
// call_exclusively, log).
type Callbacks struct {
	// Connect asks the host to open an outbound connection to addr.
	// Exactly one of onConnect or onFail must eventually be called,
	// synchronously or from another goroutine.
	Connect func(addr netip.AddrPort, onConnect func(handle peermgr.NetHandle), onFail func(reason string))

	// Send transmits b on an established connection. ok mirrors
	// peer_send's 0|1 return; false marks the peer FAILED_CONNECTION.
	Send func(handle peermgr.NetHandle, b []byte) (ok bool)

	// CallExclusively serializes fn against every other call into this
	// DM using lockSlot as the mutual-exclusion token. Only used for
	// callbacks that fire asynchronously, outside the current call
	// stack (an outbound connect's eventual success or failure);
	// everything invoked synchronously from DispatchFromBuffer or
	// Periodic is already inside the host's own exclusive section.
	CallExclusively func(lockSlot *sync.Mutex, fn func())

	// Log emits a line tagged with a source component name.
	Log func(src, line string)
}

// peerWire holds the per-peer framing state: a HandshakeDecoder until
// the 68-byte handshake completes, then a Decoder for every message
// after.
type peerWire struct {
	hs  *protocol.HandshakeDecoder
	dec *protocol.Decoder
}

// DM mediates one torrent's peers, pieces, and selection/choking
// policy. The zero value is not usable; construct with New.
type DM struct {
	cfg config.Config
	log *slog.Logger

	pieces   *piece.Manager
	sel      *selector.Selector
	bl       *blacklist.Blacklist
	jobs     *jobqueue.Queue
	peers    *peermgr.Manager
	choker   *choker.Choker
	progress *sparsecounter.Counter
	db       piecedb.PieceDB

	cb Callbacks

	// lockSlot is the token handed to CallExclusively by callbacks that
	// fire outside the current call stack.
	lockSlot sync.Mutex

	wire         map[peerid.ID]*peerWire
	activePieces map[peerid.ID]map[uint32]struct{}

	// bannedAddrs remembers the address of every peer ever banned by
	// bl, so a reconnect is refused by AddPeer even after the original
	// peerid.ID (which blacklist keys on) has gone out of scope.
	bannedAddrs map[netip.AddrPort]struct{}

	amSeeding bool
	closed    bool
}

// New constructs a DM for a torrent of the given piece hashes. cfg must
// satisfy Validate; hashes' length must equal cfg.NumPieces. Callers
// still need SetCallbacks and SetPieceSelector (and usually SetPieceDB)
// before the DM can do anything.
func New(cfg config.Config, hashes [][sha1.Size]byte, log *slog.Logger) (*DM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(hashes) != cfg.NumPieces {
		return nil, fmt.Errorf("dm: %d piece hashes for npieces=%d", len(hashes), cfg.NumPieces)
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "dm")

	pm, err := piece.NewManager(hashes, cfg.PieceLength, cfg.TotalSize, log)
	if err != nil {
		return nil, err
	}

	return &DM{
		cfg:          cfg,
		log:          log,
		pieces:       pm,
		bl:           blacklist.New(),
		jobs:         jobqueue.New(),
		peers:        peermgr.New(),
		progress:     sparsecounter.New(cfg.NumPieces),
		choker:       choker.New(choker.Leeching, cfg.MaxActivePeers, cfg.RechokeInterval, cfg.OptimisticUnchokeInterval),
		wire:         make(map[peerid.ID]*peerWire),
		activePieces: make(map[peerid.ID]map[uint32]struct{}),
		bannedAddrs:  make(map[netip.AddrPort]struct{}),
	}, nil
}

// SetCallbacks installs the host capability table. Must be called
// before AddPeer or DispatchFromBuffer.
func (dm *DM) SetCallbacks(cb Callbacks) {
	dm.cb = cb
}

// Exclusive runs fn while holding the same mutex DM passes to
// CallExclusively for its own asynchronous callbacks. A host must wrap
// every entry point it drives from outside a CallExclusively section
// in this - typically a read-loop's DispatchFromBuffer call and a
// ticker-driven Periodic call - so they never run concurrently with
// each other or with an outbound connect resolving on another
// goroutine.
func (dm *DM) Exclusive(fn func()) {
	dm.lockSlot.Lock()
	defer dm.lockSlot.Unlock()
	fn()
}

// SetPieceDB installs the on-disk piece store. Safe to call before or
// after SetPieceSelector; the startup scan only runs once, at
// SetPieceSelector time, so call this one first if the host wants
// already-complete pieces fast-forwarded without re-downloading them.
func (dm *DM) SetPieceDB(db piecedb.PieceDB) {
	dm.db = db
}

// SetPieceSelector installs the piece-ordering policy. A nil sel
// constructs the default (rarest-first) selector sized to this
// torrent. Either way, SetPieceSelector immediately scans the piece
// database (if one was set) and fast-forwards any piece it already has
// past both the piece manager and the selector, matching spec.md's
// check_pieces startup behavior.
func (dm *DM) SetPieceSelector(sel *selector.Selector) {
	if sel == nil {
		sel = selector.New(dm.cfg.NumPieces, selector.RarestFirst, dm.cfg.MaxPeerConnections)
	}
	dm.sel = sel
	dm.checkPieces()
}

// banPeer bans id outright in bl and remembers its address so a later
// AddPeer for that address is refused even after id itself has gone
// out of scope.
func (dm *DM) banPeer(id peerid.ID) {
	dm.bl.Ban(id)
	dm.recordBanAddr(id)
}

// recordBanAddr remembers id's current address as banned. Safe to call
// whether or not id turned out to cause a new ban (AddSuspected already
// guards that); it is a no-op if id is no longer connected.
func (dm *DM) recordBanAddr(id peerid.ID) {
	if p, ok := dm.peers.ByID(id); ok {
		dm.bannedAddrs[p.Addr] = struct{}{}
	}
}

func (dm *DM) checkPieces() {
	if dm.db == nil {
		return
	}
	for i := 0; i < dm.cfg.NumPieces; i++ {
		if !dm.db.Has(uint32(i)) {
			continue
		}
		dm.pieces.MarkVerifiedExternally(uint32(i))
		dm.progress.MarkComplete(i)
		dm.sel.HavePiece(i)
	}
}

// AddPeer registers a new connection. For an inbound connection,
// handle is the host's already-established net-handle. For an
// outbound connection, pass a nil handle: AddPeer asks cb.Connect to
// dial addr and only finishes wiring the peer once that succeeds,
// returning a peer whose handle will be filled in later.
//
// AddPeer refuses a self-connect (addr == cfg.MyAddr), a duplicate
// address already present in the peer table, and an address the
// blacklist has already banned.
func (dm *DM) AddPeer(addr netip.AddrPort, handle peermgr.NetHandle) (*peermgr.Peer, error) {
	if dm.closed {
		return nil, ErrClosed
	}
	if addr == dm.cfg.MyAddr {
		return nil, ErrSelfConnect
	}
	if _, banned := dm.bannedAddrs[addr]; banned {
		return nil, ErrBannedPeer
	}

	outbound := handle == nil
	placeholder := handle
	if outbound {
		placeholder = addr
	}

	p, ok := dm.peers.Add(addr, placeholder, nil)
	if !ok {
		return nil, ErrDuplicatePeer
	}

	pc := peerconn.New(dm.makeCallbacks(p), dm.peerConnConfig(), dm.cfg.NumPieces, dm.progress)
	if !outbound {
		p.PC = pc
	}

	dm.wire[p.ID] = &peerWire{hs: protocol.NewHandshakeDecoder()}
	dm.sel.AddPeer(p.ID)

	if outbound {
		dm.cb.Connect(addr, func(realHandle peermgr.NetHandle) {
			dm.cb.CallExclusively(&dm.lockSlot, func() {
				dm.peers.Rehandle(p.ID, realHandle)
				p.PC = pc
				p.PC.OnConnected()
			})
		}, func(reason string) {
			dm.cb.CallExclusively(&dm.lockSlot, func() {
				dm.RemovePeer(p.ID, "connect failed: "+reason)
			})
		})
	}

	return p, nil
}

func (dm *DM) peerConnConfig() peerconn.Config {
	return peerconn.Config{
		MaxPendingRequests: dm.cfg.MaxPendingRequests,
		KeepAliveInterval:  dm.cfg.KeepAliveInterval,
	}
}

// RemovePeer tears down a connection: in-flight block requests are
// given back to the piece manager, the peer's availability is removed
// from the selector, and the peer is dropped from the peer table and
// wire state.
func (dm *DM) RemovePeer(id peerid.ID, reason string) {
	_, ok := dm.peers.ByID(id)
	if !ok {
		return
	}

	if set, ok := dm.activePieces[id]; ok {
		for idx := range set {
			if pc := dm.pieces.Piece(idx); pc != nil {
				pc.GivebackAll(id)
			}
		}
		delete(dm.activePieces, id)
	}

	dm.sel.RemovePeer(id)
	delete(dm.wire, id)
	dm.peers.Remove(id)
	dm.log.Info("peer removed", "peer", id, "reason", reason)
}

// DispatchFromBuffer feeds bytes received on handle through the
// handshake and message framing and applies every complete message to
// the matching peer connection. Returns 1 on success, 0 if handle
// names no known peer or a framing/protocol error forced the
// connection closed.
func (dm *DM) DispatchFromBuffer(handle peermgr.NetHandle, b []byte) int {
	if dm.closed {
		return 0
	}

	p, ok := dm.peers.ByHandle(handle)
	if !ok {
		return 0
	}

	w, ok := dm.wire[p.ID]
	if !ok {
		return 0
	}

	buf := b
	if w.hs != nil {
		hs, complete, err := w.hs.Feed(buf)
		if err != nil {
			dm.failPeer(p, "bad handshake: "+err.Error())
			return 0
		}
		if !complete {
			return 1
		}
		if hs.InfoHash != dm.cfg.InfoHash {
			dm.failPeer(p, "infohash mismatch")
			return 0
		}

		buf = w.hs.Remainder()
		w.hs = nil
		w.dec = protocol.NewDecoder()
		p.PC.OnHandshakeComplete()
	}

	msgs, err := w.dec.Feed(buf)
	if err != nil {
		dm.failPeer(p, err.Error())
		return 0
	}

	for _, m := range msgs {
		if err := dm.handleMessage(p, m); err != nil {
			dm.failPeer(p, err.Error())
			return 0
		}
	}

	return 1
}

func (dm *DM) handleMessage(p *peermgr.Peer, m *protocol.Message) error {
	if protocol.IsKeepAlive(m) {
		return p.PC.OnKeepAlive()
	}

	switch m.ID {
	case protocol.Choke:
		return p.PC.OnChoke()

	case protocol.Unchoke:
		wantsPoll, err := p.PC.OnUnchoke()
		if err != nil {
			return err
		}
		if wantsPoll {
			dm.jobs.Push(jobqueue.PollBlock(p.ID))
		}
		return nil

	case protocol.Interested:
		return p.PC.OnInterested()

	case protocol.NotInterested:
		return p.PC.OnNotInterested()

	case protocol.Have:
		idx, ok := m.ParseHave()
		if !ok {
			return fmt.Errorf("dm: malformed have from peer %d", p.ID)
		}
		return p.PC.OnHave(int(idx))

	case protocol.Bitfield:
		return p.PC.OnBitfield(m.Payload)

	case protocol.Request:
		idx, begin, length, ok := m.ParseRequest()
		if !ok {
			return fmt.Errorf("dm: malformed request from peer %d", p.ID)
		}
		return p.PC.OnRequest(idx, begin, length)

	case protocol.Piece:
		idx, begin, data, ok := m.ParsePiece()
		if !ok {
			return fmt.Errorf("dm: malformed piece from peer %d", p.ID)
		}
		wantsPoll, err := p.PC.OnPiece(idx, begin, data)
		if err != nil {
			return err
		}
		if wantsPoll {
			dm.jobs.Push(jobqueue.PollBlock(p.ID))
		}
		return nil

	case protocol.Cancel:
		idx, begin, length, ok := m.ParseCancel()
		if !ok {
			return fmt.Errorf("dm: malformed cancel from peer %d", p.ID)
		}
		return p.PC.OnCancel(idx, begin, length)

	default:
		return fmt.Errorf("dm: unknown message id %d from peer %d", m.ID, p.ID)
	}
}

// onBlockReceived writes a received block into its piece, persisting,
// broadcasting HAVE, and advancing selection on completion; or giving
// the piece back and recording suspicion/banning its contributor(s) on
// a failed SHA-1 check.
func (dm *DM) onBlockReceived(peer peerid.ID, pieceIdx, begin uint32, data []byte) {
	pc := dm.pieces.Piece(pieceIdx)
	if pc == nil {
		return
	}

	result, contributors := pc.WriteBlock(begin, data, peer)
	switch result {
	case piece.WriteAccepted:
		dm.trackActive(peer, pieceIdx)

	case piece.WriteComplete:
		dm.progress.MarkComplete(int(pieceIdx))
		dm.sel.HavePiece(int(pieceIdx))
		dm.clearActiveForPiece(pieceIdx)
		if dm.db != nil {
			if err := dm.db.StorePiece(pieceIdx, pc.Bytes()); err != nil {
				dm.log.Warn("store piece failed", "piece", pieceIdx, "err", err)
			}
		}
		dm.broadcastHave(pieceIdx)

	case piece.WriteCorrupt:
		dm.clearActiveForPiece(pieceIdx)
		if len(contributors) == 1 {
			dm.banPeer(contributors[0])
			dm.log.Warn("banned sole contributor to corrupt piece", "piece", pieceIdx, "peer", contributors[0])
		} else {
			for _, c := range contributors {
				if dm.bl.AddSuspected(int(pieceIdx), c) {
					dm.recordBanAddr(c)
					dm.log.Warn("banned peer after second suspected piece", "peer", c)
				}
			}
		}

	case piece.WriteError:
		dm.log.Warn("write block failed", "piece", pieceIdx, "begin", begin)
	}
}

func (dm *DM) broadcastHave(pieceIdx uint32) {
	msg := protocol.MessageHave(pieceIdx)
	b, err := msg.MarshalBinary()
	if err != nil {
		return
	}

	for _, p := range dm.peers.All() {
		w := dm.wire[p.ID]
		if w == nil || w.hs != nil {
			continue // handshake not yet complete
		}
		if !dm.cb.Send(p.NetHandle, b) {
			dm.failPeer(p, "have broadcast send failed")
		}
	}
}

func (dm *DM) trackActive(peer peerid.ID, idx uint32) {
	set, ok := dm.activePieces[peer]
	if !ok {
		set = make(map[uint32]struct{})
		dm.activePieces[peer] = set
	}
	set[idx] = struct{}{}
}

func (dm *DM) clearActiveForPiece(idx uint32) {
	for _, set := range dm.activePieces {
		delete(set, idx)
	}
}

func (dm *DM) failPeer(p *peermgr.Peer, reason string) {
	if p.PC != nil {
		p.PC.Fail(reason)
	}
}

// pollBlock pulls one eligible piece index from the selector for peer
// and pipelines block requests against it until either the piece is
// fully requested or the peer's pending-request ceiling is reached.
func (dm *DM) pollBlock(peerID peerid.ID) {
	p, ok := dm.peers.ByID(peerID)
	if !ok || p.PC == nil || p.PC.PeerChoking() {
		return
	}

	idx, ok := dm.sel.PollPiece(peerID, dm.pieceFullyRequested)
	if !ok {
		return
	}

	pieceObj := dm.pieces.Piece(uint32(idx))
	assertf(pieceObj != nil, "selector returned out-of-range piece index %d (npieces=%d)", idx, dm.pieces.PieceCount())

	for p.PC.PendingRequestCount() < dm.cfg.MaxPendingRequests {
		blk, got := pieceObj.PollBlockRequest(peerID)
		if !got {
			break
		}
		dm.trackActive(peerID, uint32(idx))
		p.PC.AddOutboundRequest(peerconn.PendingRequest{
			PieceIdx: blk.PieceIdx,
			Begin:    blk.Begin,
			Length:   blk.Length,
		})
	}
}

// pieceFullyRequested reports whether every block of piece idx has
// already been assigned to some peer, the selector's sole signal for
// whether idx is still worth offering -- an out-of-range index (there
// is none once the selector only ever returns indices within its own
// size) is treated as fully requested so it is never picked twice.
func (dm *DM) pieceFullyRequested(idx int) bool {
	pc := dm.pieces.Piece(uint32(idx))
	if pc == nil {
		return true
	}
	return pc.FullyRequested()
}

// Periodic drives one tick: draining deferred jobs, ticking every
// peer's own per-connection timers, disconnecting anyone idle past
// PeerTimeout, and running the choker. It returns a snapshot suitable
// for a dashboard or a log line.
func (dm *DM) Periodic(now time.Time) dmstats.Snapshot {
	if dm.closed {
		return dmstats.Snapshot{}
	}

	wasSeeding := dm.amSeeding
	dm.amSeeding = dm.cfg.NumPieces > 0 && dm.progress.All()
	if dm.amSeeding && !wasSeeding {
		dm.choker = choker.New(choker.Seeding, dm.cfg.MaxActivePeers, dm.cfg.RechokeInterval, dm.cfg.OptimisticUnchokeInterval)
	}

	if dm.amSeeding && dm.cfg.ShutdownWhenComplete {
		return dm.snapshot()
	}

	for _, j := range dm.jobs.Drain() {
		switch j.Kind {
		case jobqueue.KindPollBlock:
			dm.pollBlock(j.Peer)
		}
	}

	for _, p := range dm.peers.All() {
		if p.PC == nil {
			continue // outbound connect still pending
		}
		if now.Sub(p.PC.Stats().LastRxAt) > dm.cfg.PeerTimeout {
			dm.RemovePeer(p.ID, "timeout")
			continue
		}
		if p.PC.Periodic(now) {
			dm.jobs.Push(jobqueue.PollBlock(p.ID))
		}
	}

	peersView := make(map[peerid.ID]choker.Peer, dm.peers.Len())
	for _, p := range dm.peers.All() {
		if p.PC != nil {
			peersView[p.ID] = pcChokerAdapter{p.PC}
		}
	}
	dm.choker.Tick(now, peersView)

	return dm.snapshot()
}

func (dm *DM) snapshot() dmstats.Snapshot {
	peers := make([]dmstats.PeerStats, 0, dm.peers.Len())
	for _, p := range dm.peers.All() {
		if p.PC == nil {
			continue
		}
		st := p.PC.Stats()
		peers = append(peers, dmstats.PeerStats{
			ID:           p.ID,
			Addr:         p.Addr.String(),
			Downloaded:   st.Downloaded,
			Uploaded:     st.Uploaded,
			DownloadRate: st.DownloadRate,
			UploadRate:   st.UploadRate,
			AmChoking:    p.PC.AmChoking(),
			PeerChoking:  p.PC.PeerChoking(),
			AmInterested: p.PC.AmInterested(),
			PeerInterest: p.PC.PeerInterested(),
		})
	}

	return dmstats.Snapshot{
		PiecesComplete: dm.progress.CompletedCount(),
		PiecesTotal:    dm.cfg.NumPieces,
		AmSeeding:      dm.amSeeding,
		BannedPeers:    dm.bl.BannedCount(),
		Peers:          peers,
	}
}

// Close tears the download manager down: every peer is removed (giving
// back in-flight requests), the selector and piece database references
// are dropped, and further calls return ErrClosed.
func (dm *DM) Close() error {
	if dm.closed {
		return nil
	}
	dm.closed = true

	for _, p := range dm.peers.All() {
		dm.RemovePeer(p.ID, "shutting down")
	}
	dm.sel = nil

	if dm.db != nil {
		err := dm.db.Close()
		dm.db = nil
		return err
	}
	return nil
}

// makeCallbacks builds the peerconn.Callbacks table for p, closing
// over its stable *peermgr.Peer pointer rather than its id, so a
// Rehandle after an outbound connect succeeds is visible to every
// closure without any of them needing to re-resolve p by id.
func (dm *DM) makeCallbacks(p *peermgr.Peer) peerconn.Callbacks {
	return peerconn.Callbacks{
		Send: func(msg *protocol.Message) {
			b, err := msg.MarshalBinary()
			if err != nil {
				return
			}
			if !dm.cb.Send(p.NetHandle, b) {
				dm.failPeer(p, "send failed")
			}
		},
		SendHandshake: func() {
			hs := protocol.NewHandshake(dm.cfg.InfoHash, dm.cfg.MyPeerID)
			b, err := hs.MarshalBinary()
			if err != nil {
				return
			}
			if !dm.cb.Send(p.NetHandle, b) {
				dm.failPeer(p, "handshake send failed")
			}
		},
		WriteBlockToStream: func(pieceIdx, begin, length uint32) ([]byte, bool) {
			if dm.db == nil {
				return nil, false
			}
			return dm.db.ReadBlock(pieceIdx, begin, length)
		},
		PushBlock: func(pieceIdx, begin uint32, data []byte) {
			dm.onBlockReceived(p.ID, pieceIdx, begin, data)
		},
		NotifyHave: func(idx int) {
			dm.sel.PeerHavePiece(p.ID, idx)
		},
		NotifyBitfield: func(bits bitfield.Bitfield) {
			n := bits.Len()
			if n > dm.cfg.NumPieces {
				n = dm.cfg.NumPieces
			}
			for i := 0; i < n; i++ {
				if bits.Has(i) {
					dm.sel.PeerHavePiece(p.ID, i)
				}
			}
		},
		GivebackRequests: func(reqs []peerconn.PendingRequest) {
			for _, r := range reqs {
				if pc := dm.pieces.Piece(r.PieceIdx); pc != nil {
					pc.GivebackBlock(r.Begin, p.ID)
				}
			}
		},
		Disconnect: func(reason string) {
			dm.RemovePeer(p.ID, reason)
		},
		Log: func(msg string, args ...any) {
			dm.log.With("peer", p.ID).Info(msg, args...)
		},
	}
}

// pcChokerAdapter lets *peerconn.PC satisfy choker.Peer without
// internal/choker importing internal/peerconn.
type pcChokerAdapter struct {
	pc *peerconn.PC
}

func (a pcChokerAdapter) DownloadRate() float64 { return a.pc.Stats().DownloadRate }
func (a pcChokerAdapter) UploadRate() float64   { return a.pc.Stats().UploadRate }
func (a pcChokerAdapter) IsInterested() bool    { return a.pc.PeerInterested() }
func (a pcChokerAdapter) IsChoking() bool       { return a.pc.AmChoking() }
func (a pcChokerAdapter) Choke()                { a.pc.SetChoking(true) }
func (a pcChokerAdapter) Unchoke()              { a.pc.SetChoking(false) }
