// Package peerid defines the small-integer handle the download manager
// uses to refer to a peer from code that must not hold an owning
// reference back into the peer table (piece contributor sets, blacklist
// edges, queued jobs). See spec.md's design note on cyclic references.
package peerid

// ID identifies a peer within a single DownloadManager's peer table. It is
// minted by the peer manager when a peer is added and is never reused
// while that peer is alive; it becomes meaningless once the peer is
// removed.
type ID uint32

// Invalid is never assigned to a live peer.
const Invalid ID = 0
