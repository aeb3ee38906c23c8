// Package peermgr is the set of peers connected to a single torrent,
// indexed both by net-handle (the host's opaque I/O token) and by
// (ip, port), per spec.md's PeerManager responsibility. Grounded on
// prxssh/rabbit's peer.Swarm peer map and its addPeer/removePeer/GetPeer
// trio, but without swarm's sync.RWMutex: the download manager drives
// everything from a single exclusivity domain, so the map itself needs
// no locking of its own.
package peermgr

import (
	"net/netip"

	"github.com/prxssh/rabbitdm/internal/peerconn"
	"github.com/prxssh/rabbitdm/internal/peerid"
)

// NetHandle is the host's opaque I/O token for a connection, passed
// back to the host's peer_send and compared for routing
// dispatch_from_buffer calls. It must be comparable.
type NetHandle any

// Peer bundles everything the download manager needs to address and
// drive a connection: its small-integer handle, network identity, the
// host's opaque token, and its protocol state machine.
type Peer struct {
	ID        peerid.ID
	Addr      netip.AddrPort
	NetHandle NetHandle
	PC        *peerconn.PC
}

// Manager is the peer table for one torrent.
type Manager struct {
	nextID   peerid.ID
	byID     map[peerid.ID]*Peer
	byAddr   map[netip.AddrPort]*Peer
	byHandle map[NetHandle]*Peer
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		nextID:   peerid.Invalid + 1,
		byID:     make(map[peerid.ID]*Peer),
		byAddr:   make(map[netip.AddrPort]*Peer),
		byHandle: make(map[NetHandle]*Peer),
	}
}

// Add registers a new peer at addr with the given net-handle and
// protocol state machine, minting a fresh peerid.ID. ok is false if
// addr already has a connection, in which case no peer is added.
func (m *Manager) Add(addr netip.AddrPort, handle NetHandle, pc *peerconn.PC) (*Peer, bool) {
	if _, dup := m.byAddr[addr]; dup {
		return nil, false
	}

	p := &Peer{
		ID:        m.nextID,
		Addr:      addr,
		NetHandle: handle,
		PC:        pc,
	}
	m.nextID++

	m.byID[p.ID] = p
	m.byAddr[addr] = p
	m.byHandle[handle] = p

	return p, true
}

// Rehandle updates the net-handle index for an already-registered peer,
// used once an outbound connect callback reports the host's real
// handle for a peer that was provisionally added under a placeholder
// one. ok is false for an unknown id.
func (m *Manager) Rehandle(id peerid.ID, newHandle NetHandle) bool {
	p, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byHandle, p.NetHandle)
	p.NetHandle = newHandle
	m.byHandle[newHandle] = p
	return true
}

// Remove removes the peer identified by id from every index. It is a
// no-op for an unknown id.
func (m *Manager) Remove(id peerid.ID) {
	p, ok := m.byID[id]
	if !ok {
		return
	}

	delete(m.byID, id)
	delete(m.byAddr, p.Addr)
	delete(m.byHandle, p.NetHandle)
}

// ByID looks up a peer by its small-integer handle.
func (m *Manager) ByID(id peerid.ID) (*Peer, bool) {
	p, ok := m.byID[id]
	return p, ok
}

// ByAddr looks up a peer by (ip, port).
func (m *Manager) ByAddr(addr netip.AddrPort) (*Peer, bool) {
	p, ok := m.byAddr[addr]
	return p, ok
}

// ByHandle looks up a peer by the host's opaque net-handle, the path
// dispatch_from_buffer uses to resolve inbound bytes to a peer.
func (m *Manager) ByHandle(handle NetHandle) (*Peer, bool) {
	p, ok := m.byHandle[handle]
	return p, ok
}

// Len returns the number of connected peers.
func (m *Manager) Len() int {
	return len(m.byID)
}

// All returns every peer, in no particular order.
func (m *Manager) All() []*Peer {
	out := make([]*Peer, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out
}
