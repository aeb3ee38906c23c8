package dmstats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompletionFractionHandlesEmptyTorrent(t *testing.T) {
	require := require.New(t)

	s := Snapshot{}
	require.Zero(s.CompletionFraction(), "a torrent with no pieces should report 0 completion, not NaN")
}

func TestCompletionFraction(t *testing.T) {
	require := require.New(t)

	s := Snapshot{PiecesComplete: 3, PiecesTotal: 4}
	require.InDelta(0.75, s.CompletionFraction(), 0.0001)
}

func TestTotalRatesSumAcrossPeers(t *testing.T) {
	require := require.New(t)

	s := Snapshot{Peers: []PeerStats{
		{DownloadRate: 100, UploadRate: 10},
		{DownloadRate: 50, UploadRate: 5},
	}}

	require.InDelta(150, s.TotalDownloadRate(), 0.0001)
	require.InDelta(15, s.TotalUploadRate(), 0.0001)
}

func TestSummaryReportsModeAndCounts(t *testing.T) {
	require := require.New(t)

	s := Snapshot{
		PiecesComplete: 10,
		PiecesTotal:    20,
		Peers: []PeerStats{
			{DownloadRate: 1024, UploadRate: 0},
		},
	}

	line := s.Summary()
	require.Contains(line, "10/20 pieces (50.0%)")
	require.Contains(line, "1 peers")
	require.Contains(line, "leeching")

	s.AmSeeding = true
	require.True(strings.Contains(s.Summary(), "seeding"))
}

func TestPeerLineRendersChokeInterestFlags(t *testing.T) {
	require := require.New(t)

	p := PeerStats{
		ID:           7,
		Addr:         "10.0.0.5:6881",
		AmChoking:    true,
		PeerChoking:  false,
		AmInterested: false,
		PeerInterest: true,
		Downloaded:   2048,
		Uploaded:     512,
	}

	line := PeerLine(p)
	require.Contains(line, "10.0.0.5:6881")
	require.Contains(line, "Cu.I")
}
