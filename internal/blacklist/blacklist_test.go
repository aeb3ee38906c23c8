package blacklist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoleContributorBanOutright(t *testing.T) {
	require := require.New(t)

	b := New()
	b.Ban(1)

	require.True(b.IsBanned(1), "peer 1 should be banned")
	require.False(b.IsBanned(2), "peer 2 should not be banned")
}

func TestTwoDistinctSuspicionsPromoteToBan(t *testing.T) {
	require := require.New(t)

	b := New()

	promoted := b.AddSuspected(0, 1)
	require.False(promoted, "one suspicion should not ban")
	require.False(b.IsBanned(1), "peer should not be banned after one suspicion")

	promoted = b.AddSuspected(5, 1)
	require.True(promoted, "second distinct suspicion should ban")
	require.True(b.IsBanned(1), "peer should be banned after two distinct suspicions")
}

func TestRepeatedSuspicionOfSamePieceDoesNotBan(t *testing.T) {
	require := require.New(t)

	b := New()

	b.AddSuspected(3, 1)
	promoted := b.AddSuspected(3, 1)

	require.False(promoted, "repeated suspicion of the same piece should not ban")
	require.False(b.IsBanned(1), "peer should not be banned from one distinct piece")
	require.Equal(1, b.SuspectedCount(1))
}

func TestAddSuspectedAfterBanIsNoop(t *testing.T) {
	require := require.New(t)

	b := New()
	b.Ban(1)

	promoted := b.AddSuspected(9, 1)
	require.False(promoted, "AddSuspected on an already-banned peer should not report a new promotion")
	require.Equal(0, b.SuspectedCount(1), "SuspectedCount once already banned")
}

func TestBannedCount(t *testing.T) {
	require := require.New(t)

	b := New()
	b.Ban(1)
	b.Ban(2)
	b.Ban(1)

	require.Equal(2, b.BannedCount())
}
