// Package peerconn implements the per-peer peer-wire-protocol state
// machine. Unlike the teacher's peer.Peer, a PC owns no socket and no
// goroutines: it never blocks, is driven entirely by method calls the
// download manager makes from dispatch_from_buffer (for inbound
// messages) and periodic (for the tick), and reaches everything outside
// itself — sending bytes, reading/writing blocks, disconnecting — only
// through the Callbacks table supplied at construction.
//
// The choke/interest flags, their bitmask encoding (a plain Flags value
// here, with no atomic operations), and the EWMA rate computation are grounded on prxssh/rabbit's
// internal/peer.Peer (maskAmChoking et al., PeerStats,
// downloadUploadRatesLoop), adapted from a background-ticker goroutine
// to a value recomputed once per Periodic call, per SPEC_FULL.md §4.8.
package peerconn

import (
	"errors"
	"time"

	"github.com/prxssh/rabbitdm/internal/bitfield"
	"github.com/prxssh/rabbitdm/internal/protocol"
	"github.com/prxssh/rabbitdm/internal/sparsecounter"
)

// Flags mirrors the bitset spec.md's data model lists for a
// PeerConnection: handshake progress plus the four choke/interest bits.
type Flags uint32

const (
	HandshakeSent Flags = 1 << iota
	HandshakeReceived
	ImChoking
	ImInterested
	PeerChoking
	PeerInterested
	FailedConnection
)

// defaultFlags matches spec.md §3: IM_CHOKING and PEER_CHOKING start
// true, IM_INTERESTED and PEER_INTERESTED start false.
const defaultFlags = ImChoking | PeerChoking

var (
	// ErrFailedConnection is returned by any state-changing method once
	// the connection has been marked failed; FAILED_CONNECTION is
	// terminal.
	ErrFailedConnection = errors.New("peerconn: connection has failed")
)

// PendingRequest is an outstanding block request we've sent to the peer
// (REQUEST) or the peer has sent to us awaiting a PIECE reply.
type PendingRequest struct {
	PieceIdx uint32
	Begin    uint32
	Length   uint32
}

// Stats holds byte counters and EWMA rate state, recomputed once per
// Periodic call rather than on an independent ticker.
type Stats struct {
	Downloaded uint64
	Uploaded   uint64

	DownloadRate float64
	UploadRate   float64

	lastDownloaded uint64
	lastUploaded   uint64
	lastRateAt     time.Time
	rateInited     bool

	ConnectedAt    time.Time
	LastRxAt       time.Time
	LastTxAt       time.Time
	DisconnectedAt time.Time
}

// rateAlpha is the EWMA smoothing factor used for both directions.
const rateAlpha = 0.2

// Callbacks is how a PC reaches the rest of the system. The download
// manager supplies one set per peer at construction; a PC never holds
// a reference to the piece database, the selector, or any other peer.
type Callbacks struct {
	// Send transmits a framed PWP message.
	Send func(msg *protocol.Message)
	// SendHandshake transmits the 68-byte handshake for an outbound
	// connection (DM owns the configured infohash/peer id).
	SendHandshake func()
	// WriteBlockToStream reads length bytes at (pieceIdx, begin) from
	// the piece database so the PC can answer a REQUEST with a PIECE.
	WriteBlockToStream func(pieceIdx, begin, length uint32) ([]byte, bool)
	// PushBlock hands received block data to the piece manager.
	PushBlock func(pieceIdx, begin uint32, data []byte)
	// NotifyHave tells the selector the peer has piece idx.
	NotifyHave func(idx int)
	// NotifyBitfield tells the selector about every bit set in bits.
	NotifyBitfield func(bits bitfield.Bitfield)
	// GivebackRequests returns in-flight requests to the piece manager
	// after a CHOKE, so they become requestable again.
	GivebackRequests func(reqs []PendingRequest)
	// Disconnect tears the peer down with a human-readable reason.
	Disconnect func(reason string)
	// Log emits a structured log line tagged to this peer.
	Log func(msg string, args ...any)
}

// Config bounds a PC's behavior; values come from internal/config.
type Config struct {
	MaxPendingRequests int
	KeepAliveInterval  time.Duration
}

// PC is the per-peer protocol state machine.
type PC struct {
	cb  Callbacks
	cfg Config

	flags Flags

	peerBitfield      bitfield.Bitfield
	bitfieldAssigned  bool
	progress          *sparsecounter.Counter
	outboundRequests  []PendingRequest
	inboundRequests   []PendingRequest
	stats             Stats
}

// New constructs a PC for a peer that can hold npieces pieces, bound to
// progress (the DM's local-completion counter, shared across all
// peers) so the PC can decide interest and build its BITFIELD without
// reaching into the piece database directly.
func New(cb Callbacks, cfg Config, npieces int, progress *sparsecounter.Counter) *PC {
	now := time.Now()
	return &PC{
		cb:           cb,
		cfg:          cfg,
		flags:        defaultFlags,
		peerBitfield: bitfield.New(npieces),
		progress:     progress,
		stats: Stats{
			ConnectedAt: now,
			LastRxAt:    now,
			LastTxAt:    now,
			lastRateAt:  now,
		},
	}
}

func (p *PC) has(f Flags) bool { return p.flags&f != 0 }

func (p *PC) set(f Flags, on bool) {
	if on {
		p.flags |= f
	} else {
		p.flags &^= f
	}
}

func (p *PC) AmChoking() bool        { return p.has(ImChoking) }
func (p *PC) AmInterested() bool     { return p.has(ImInterested) }
func (p *PC) PeerChoking() bool      { return p.has(PeerChoking) }
func (p *PC) PeerInterested() bool   { return p.has(PeerInterested) }
func (p *PC) Failed() bool           { return p.has(FailedConnection) }
func (p *PC) PendingRequestCount() int { return len(p.outboundRequests) }
func (p *PC) Stats() Stats            { return p.stats }

// OnConnected is called once an outbound peer_connect callback
// succeeds. It sends our handshake and marks HANDSHAKE_SENT.
func (p *PC) OnConnected() {
	if p.has(HandshakeSent) {
		return
	}
	p.cb.SendHandshake()
	p.set(HandshakeSent, true)
}

// OnHandshakeComplete is called by the DM once the Handshaker has
// validated an inbound (or completed an outbound) handshake and the
// infohash matched. It sets HANDSHAKE_RECEIVED and sends our bitfield.
func (p *PC) OnHandshakeComplete() {
	p.set(HandshakeReceived, true)
	p.cb.Send(protocol.MessageBitfield(p.progress.Bitfield().Bytes()))
}

// Fail marks the connection FAILED_CONNECTION, a terminal state, and
// disconnects with reason.
func (p *PC) Fail(reason string) {
	if p.has(FailedConnection) {
		return
	}
	p.set(FailedConnection, true)
	p.cb.Disconnect(reason)
}

// OnChoke handles a received CHOKE: sets PEER_CHOKING and gives back
// every outstanding request we'd made.
func (p *PC) OnChoke() error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.set(PeerChoking, true)
	p.touchRx()

	if len(p.outboundRequests) > 0 {
		reqs := p.outboundRequests
		p.outboundRequests = nil
		p.cb.GivebackRequests(reqs)
	}
	return nil
}

// OnUnchoke handles a received UNCHOKE. wantsPoll tells the caller to
// enqueue a PollBlock job for this peer.
func (p *PC) OnUnchoke() (wantsPoll bool, err error) {
	if p.has(FailedConnection) {
		return false, ErrFailedConnection
	}
	p.set(PeerChoking, false)
	p.touchRx()
	return true, nil
}

// OnInterested handles a received INTERESTED.
func (p *PC) OnInterested() error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.set(PeerInterested, true)
	p.touchRx()
	return nil
}

// OnNotInterested handles a received NOT_INTERESTED.
func (p *PC) OnNotInterested() error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.set(PeerInterested, false)
	p.touchRx()
	return nil
}

// OnHave handles a received HAVE(idx): marks the bit, notifies the
// selector, and sends INTERESTED the first time a piece we lack shows
// up.
func (p *PC) OnHave(idx int) error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.touchRx()

	if idx < 0 || idx >= p.peerBitfield.Len() {
		return nil
	}
	p.peerBitfield.Set(idx)
	p.cb.NotifyHave(idx)
	p.maybeBecomeInterested(idx)
	return nil
}

// OnBitfield handles a received BITFIELD, which is only valid as the
// first post-handshake message.
func (p *PC) OnBitfield(bits []byte) error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.touchRx()

	if p.bitfieldAssigned {
		return nil // ignore late/duplicate bitfield, don't disconnect
	}
	p.bitfieldAssigned = true

	p.peerBitfield = bitfield.FromBytes(bits)
	p.cb.NotifyBitfield(p.peerBitfield)

	for i := 0; i < p.peerBitfield.Len(); i++ {
		if p.peerBitfield.Has(i) {
			p.maybeBecomeInterested(i)
		}
	}
	return nil
}

func (p *PC) maybeBecomeInterested(idx int) {
	if p.AmInterested() {
		return
	}
	if p.progress.IsComplete(idx) {
		return
	}
	p.set(ImInterested, true)
	p.cb.Send(protocol.MessageInterested())
}

// OnRequest handles a received REQUEST. If we're choking the peer the
// request is silently dropped, matching the protocol's "choking means
// no uploads" rule.
func (p *PC) OnRequest(pieceIdx, begin, length uint32) error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.touchRx()

	if p.AmChoking() {
		return nil
	}

	req := PendingRequest{PieceIdx: pieceIdx, Begin: begin, Length: length}
	p.inboundRequests = append(p.inboundRequests, req)

	data, ok := p.cb.WriteBlockToStream(pieceIdx, begin, length)
	p.removeInboundRequest(req)
	if !ok {
		return nil
	}

	p.cb.Send(protocol.MessagePiece(pieceIdx, begin, data))
	p.stats.Uploaded += uint64(len(data))
	p.touchTx()
	return nil
}

// OnPiece handles a received PIECE: clears the matching outbound
// request, hands the data to the piece manager, and asks the caller to
// enqueue a PollBlock job so pipelining continues immediately.
func (p *PC) OnPiece(pieceIdx, begin uint32, data []byte) (wantsPoll bool, err error) {
	if p.has(FailedConnection) {
		return false, ErrFailedConnection
	}
	p.touchRx()

	p.removeOutboundRequest(PendingRequest{PieceIdx: pieceIdx, Begin: begin, Length: uint32(len(data))})
	p.cb.PushBlock(pieceIdx, begin, data)
	p.stats.Downloaded += uint64(len(data))

	return true, nil
}

// OnCancel handles a received CANCEL, removing the named inbound
// request if it hasn't been served yet.
func (p *PC) OnCancel(pieceIdx, begin, length uint32) error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.touchRx()
	p.removeInboundRequest(PendingRequest{PieceIdx: pieceIdx, Begin: begin, Length: length})
	return nil
}

// OnKeepAlive handles a received keep-alive frame.
func (p *PC) OnKeepAlive() error {
	if p.has(FailedConnection) {
		return ErrFailedConnection
	}
	p.touchRx()
	return nil
}

// SetChoking updates our own choking decision towards the peer, sending
// CHOKE/UNCHOKE only when it actually changes. Driven by internal/choker
// through the choker.Peer adapter, never by a received message.
func (p *PC) SetChoking(choking bool) {
	if p.has(FailedConnection) {
		return
	}
	if p.AmChoking() == choking {
		return
	}
	p.set(ImChoking, choking)
	if choking {
		p.cb.Send(protocol.MessageChoke())
	} else {
		p.cb.Send(protocol.MessageUnchoke())
	}
	p.touchTx()
}

// AddOutboundRequest records a REQUEST the DM is about to (or just
// did) send on this PC's behalf, so pipelining accounting and later
// CHOKE giveback can find it.
func (p *PC) AddOutboundRequest(req PendingRequest) {
	p.outboundRequests = append(p.outboundRequests, req)
	p.cb.Send(protocol.MessageRequest(req.PieceIdx, req.Begin, req.Length))
}

// Periodic drives one tick: it sends a delayed handshake if needed,
// sends a keep-alive if the connection has been idle, recomputes EWMA
// rates, and reports whether the peer is eligible for another
// PollBlock job.
func (p *PC) Periodic(now time.Time) (wantsPoll bool) {
	if p.has(FailedConnection) {
		return false
	}

	if !p.has(HandshakeSent) {
		p.cb.SendHandshake()
		p.set(HandshakeSent, true)
	}

	if now.Sub(p.stats.LastTxAt) >= p.cfg.KeepAliveInterval {
		p.cb.Send(nil)
		p.touchTx()
	}

	p.updateRates(now)

	if !p.PeerChoking() && len(p.outboundRequests) < p.cfg.MaxPendingRequests {
		return true
	}
	return false
}

func (p *PC) updateRates(now time.Time) {
	elapsed := now.Sub(p.stats.lastRateAt).Seconds()
	if elapsed <= 0 {
		return
	}

	instDown := float64(p.stats.Downloaded-p.stats.lastDownloaded) / elapsed
	instUp := float64(p.stats.Uploaded-p.stats.lastUploaded) / elapsed

	if !p.stats.rateInited {
		p.stats.DownloadRate = instDown
		p.stats.UploadRate = instUp
		p.stats.rateInited = true
	} else {
		p.stats.DownloadRate = rateAlpha*instDown + (1-rateAlpha)*p.stats.DownloadRate
		p.stats.UploadRate = rateAlpha*instUp + (1-rateAlpha)*p.stats.UploadRate
	}

	p.stats.lastDownloaded = p.stats.Downloaded
	p.stats.lastUploaded = p.stats.Uploaded
	p.stats.lastRateAt = now
}

func (p *PC) removeOutboundRequest(req PendingRequest) {
	for i, r := range p.outboundRequests {
		if r.PieceIdx == req.PieceIdx && r.Begin == req.Begin {
			p.outboundRequests = append(p.outboundRequests[:i], p.outboundRequests[i+1:]...)
			return
		}
	}
}

func (p *PC) removeInboundRequest(req PendingRequest) {
	for i, r := range p.inboundRequests {
		if r.PieceIdx == req.PieceIdx && r.Begin == req.Begin {
			p.inboundRequests = append(p.inboundRequests[:i], p.inboundRequests[i+1:]...)
			return
		}
	}
}

func (p *PC) touchRx() {
	p.stats.LastRxAt = time.Now()
}

func (p *PC) touchTx() {
	p.stats.LastTxAt = time.Now()
}
