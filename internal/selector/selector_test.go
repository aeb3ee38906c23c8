package selector

import "testing"

// notFullyRequested is the predicate every test that doesn't care about
// fully-requested pieces passes to PollPiece.
func notFullyRequested(idx int) bool { return false }

func TestPollAgainstEmptyBitfieldReturnsNone(t *testing.T) {
	s := New(4, Sequential, 8)
	s.AddPeer(1)

	if _, ok := s.PollPiece(1, notFullyRequested); ok {
		t.Fatalf("expected no eligible piece for a peer with an empty bitfield")
	}
}

func TestUnknownPeerPollsNone(t *testing.T) {
	s := New(4, Sequential, 8)
	if _, ok := s.PollPiece(99, notFullyRequested); ok {
		t.Fatalf("expected no selection for an unregistered peer")
	}
}

func TestPollAgainstPartialBitfieldReturnsOnlyHeldPieces(t *testing.T) {
	s := New(4, Sequential, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 2)

	idx, ok := s.PollPiece(1, notFullyRequested)
	if !ok || idx != 2 {
		t.Fatalf("PollPiece = (%d, %v); want (2, true)", idx, ok)
	}
}

func TestSequentialPicksLowestEligibleIndex(t *testing.T) {
	s := New(5, Sequential, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 3)
	s.PeerHavePiece(1, 1)
	s.PeerHavePiece(1, 4)

	idx, ok := s.PollPiece(1, notFullyRequested)
	if !ok || idx != 1 {
		t.Fatalf("PollPiece = (%d, %v); want (1, true)", idx, ok)
	}
}

func TestHavePieceRemovesFromEligibility(t *testing.T) {
	s := New(3, Sequential, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 0)
	s.HavePiece(0)

	if _, ok := s.PollPiece(1, notFullyRequested); ok {
		t.Fatalf("a piece we already have should never be selected")
	}
}

// TestFullyRequestedPieceStaysIneligibleUntilPredicateClears mirrors
// spec eligibility directly: a piece stops being offered only while
// the caller's fullyRequested predicate reports true for it, and
// becomes selectable again the moment it reports false -- there is no
// separate in-progress bookkeeping inside the selector itself.
func TestFullyRequestedPieceStaysIneligibleUntilPredicateClears(t *testing.T) {
	s := New(2, Sequential, 8)
	s.AddPeer(1)
	s.AddPeer(2)
	s.PeerHavePiece(1, 0)
	s.PeerHavePiece(2, 0)

	fullyRequested := map[int]bool{0: true}
	pred := func(idx int) bool { return fullyRequested[idx] }

	if _, ok := s.PollPiece(1, pred); ok {
		t.Fatalf("a fully requested piece should not be offered")
	}
	if _, ok := s.PollPiece(2, pred); ok {
		t.Fatalf("a fully requested piece should not be offered to any peer")
	}

	fullyRequested[0] = false

	idx, ok := s.PollPiece(2, pred)
	if !ok || idx != 0 {
		t.Fatalf("once no longer fully requested, PollPiece = (%d, %v); want (0, true)", idx, ok)
	}
}

// TestPartiallyRequestedPieceStaysEligible guards the bug where a
// piece with blocks still MISSING (a request burst stalled partway
// through, e.g. hitting a pending-request ceiling) would be stranded
// as ineligible forever. As long as fullyRequested reports false, the
// piece must keep being offered.
func TestPartiallyRequestedPieceStaysEligible(t *testing.T) {
	s := New(1, Sequential, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 0)

	notDone := func(idx int) bool { return false }

	for i := 0; i < 5; i++ {
		idx, ok := s.PollPiece(1, notDone)
		if !ok || idx != 0 {
			t.Fatalf("poll %d = (%d, %v); want (0, true) since the piece never reports fully requested", i, idx, ok)
		}
	}
}

func TestRarestFirstPrefersLowestAvailability(t *testing.T) {
	s := New(3, RarestFirst, 8)
	s.AddPeer(1)
	s.AddPeer(2)
	s.AddPeer(3)

	// piece 0: all three peers have it (availability 3)
	// piece 1: only peer 1 has it (availability 1) -- rarest
	// piece 2: peers 1,2 have it (availability 2)
	s.PeerHavePiece(1, 0)
	s.PeerHavePiece(2, 0)
	s.PeerHavePiece(3, 0)
	s.PeerHavePiece(1, 1)
	s.PeerHavePiece(1, 2)
	s.PeerHavePiece(2, 2)

	idx, ok := s.PollPiece(1, notFullyRequested)
	if !ok || idx != 1 {
		t.Fatalf("PollPiece = (%d, %v); want (1, true) as the rarest piece", idx, ok)
	}
}

func TestRarestFirstTiesBreakOnLowestIndex(t *testing.T) {
	s := New(3, RarestFirst, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 2)
	s.PeerHavePiece(1, 0)
	s.PeerHavePiece(1, 1)

	idx, ok := s.PollPiece(1, notFullyRequested)
	if !ok || idx != 0 {
		t.Fatalf("PollPiece = (%d, %v); want (0, true)", idx, ok)
	}
}

func TestRandomOnlyPicksFromEligibleSet(t *testing.T) {
	s := New(5, Random, 8)
	s.AddPeer(1)
	s.PeerHavePiece(1, 1)
	s.PeerHavePiece(1, 3)

	for i := 0; i < 20; i++ {
		idx, ok := s.PollPiece(1, notFullyRequested)
		if !ok {
			t.Fatalf("expected an eligible piece")
		}
		if idx != 1 && idx != 3 {
			t.Fatalf("PollPiece returned ineligible idx %d", idx)
		}
	}
}

func TestRemovePeerReversesAvailability(t *testing.T) {
	s := New(2, RarestFirst, 8)
	s.AddPeer(1)
	s.AddPeer(2)
	s.PeerHavePiece(1, 0)
	s.PeerHavePiece(2, 0)

	if got := s.availability.Availability(0); got != 2 {
		t.Fatalf("availability(0) = %d; want 2", got)
	}

	s.RemovePeer(1)
	if got := s.availability.Availability(0); got != 1 {
		t.Fatalf("availability(0) after RemovePeer = %d; want 1", got)
	}

	if _, ok := s.PollPiece(1, notFullyRequested); ok {
		t.Fatalf("removed peer should no longer be pollable")
	}
}
