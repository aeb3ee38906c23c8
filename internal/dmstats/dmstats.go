// Package dmstats formats a download manager's periodic() snapshot
// for humans. Grounded on the teacher's Swarm.Stats()/SwarmMetrics
// JSON-tagged snapshot shape, reused here as input to humanized
// formatting for cmd/dmview instead of a JSON API response.
package dmstats

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/prxssh/rabbitdm/internal/peerid"
)

// PeerStats is one peer's row in a Snapshot.
type PeerStats struct {
	ID            peerid.ID
	Addr          string
	Downloaded    uint64
	Uploaded      uint64
	DownloadRate  float64
	UploadRate    float64
	AmChoking     bool
	PeerChoking   bool
	AmInterested  bool
	PeerInterest  bool
}

// Snapshot is the result of one periodic() tick, enough to render a
// dashboard or a log line.
type Snapshot struct {
	PiecesComplete int
	PiecesTotal    int
	AmSeeding      bool
	BannedPeers    int
	Peers          []PeerStats
}

// CompletionFraction returns how much of the torrent is complete, in
// [0, 1]. Returns 0 if there are no pieces at all.
func (s Snapshot) CompletionFraction() float64 {
	if s.PiecesTotal == 0 {
		return 0
	}
	return float64(s.PiecesComplete) / float64(s.PiecesTotal)
}

// TotalDownloadRate sums every peer's current download rate.
func (s Snapshot) TotalDownloadRate() float64 {
	var total float64
	for _, p := range s.Peers {
		total += p.DownloadRate
	}
	return total
}

// TotalUploadRate sums every peer's current upload rate.
func (s Snapshot) TotalUploadRate() float64 {
	var total float64
	for _, p := range s.Peers {
		total += p.UploadRate
	}
	return total
}

// Summary renders a one-line human-readable summary, e.g.
// "42/128 pieces (32.8%) | down 1.2 MB/s | up 340 kB/s | 6 peers | leeching".
func (s Snapshot) Summary() string {
	mode := "leeching"
	if s.AmSeeding {
		mode = "seeding"
	}
	return fmt.Sprintf(
		"%d/%d pieces (%.1f%%) | down %s/s | up %s/s | %d peers | %s",
		s.PiecesComplete, s.PiecesTotal, s.CompletionFraction()*100,
		humanize.Bytes(uint64(s.TotalDownloadRate())),
		humanize.Bytes(uint64(s.TotalUploadRate())),
		len(s.Peers), mode,
	)
}

// PeerLine renders a single peer row for a table/log.
func PeerLine(p PeerStats) string {
	var flags strings.Builder
	if p.AmChoking {
		flags.WriteByte('C')
	} else {
		flags.WriteByte('u')
	}
	if p.PeerChoking {
		flags.WriteByte('C')
	} else {
		flags.WriteByte('u')
	}
	if p.AmInterested {
		flags.WriteByte('I')
	} else {
		flags.WriteByte('.')
	}
	if p.PeerInterest {
		flags.WriteByte('I')
	} else {
		flags.WriteByte('.')
	}

	return fmt.Sprintf(
		"%-6v %-21s %s  down %-10s up %-10s  (%s / %s)",
		p.ID, p.Addr, flags.String(),
		humanize.Bytes(uint64(p.DownloadRate))+"/s",
		humanize.Bytes(uint64(p.UploadRate))+"/s",
		humanize.Bytes(p.Downloaded), humanize.Bytes(p.Uploaded),
	)
}
