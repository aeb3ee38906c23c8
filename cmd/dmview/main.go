// Command dmview is a terminal dashboard demonstrating the download
// manager core wired to refhost over real sockets. It carries no
// metainfo or tracker support: piece hashes, piece length, and total
// size are supplied directly on the command line, and every peer to
// connect to at startup is supplied with -peer.
package main

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prxssh/rabbitdm/internal/config"
	"github.com/prxssh/rabbitdm/internal/dm"
	"github.com/prxssh/rabbitdm/internal/dmstats"
	"github.com/prxssh/rabbitdm/internal/logging"
	"github.com/prxssh/rabbitdm/internal/refhost"
	"github.com/prxssh/rabbitdm/internal/refpiecedb"
)

// peerAddrs collects repeated -peer flags into a slice of addresses to
// dial once the DM is up.
type peerAddrs []netip.AddrPort

func (p *peerAddrs) String() string {
	return fmt.Sprint([]netip.AddrPort(*p))
}

func (p *peerAddrs) Set(s string) error {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return fmt.Errorf("bad -peer address %q: %w", s, err)
	}
	*p = append(*p, ap)
	return nil
}

func main() {
	var (
		listen      = flag.String("listen", "127.0.0.1:6881", "address to accept inbound peer connections on")
		hashesPath  = flag.String("piece-hashes", "", "file of hex-encoded sha1 piece hashes, one per line; empty means a zero-piece torrent")
		pieceLength = flag.Uint64("piece-length", 256*1024, "byte length of every piece but the last")
		totalSize   = flag.Uint64("total-size", 0, "full content size in bytes")
		downloadDir = flag.String("download-dir", "", "directory the piece database persists into; defaults to the config default")
		logPath     = flag.String("log-file", "dmview.log", "file to write logs to, since stderr is owned by the dashboard")
	)
	var peers peerAddrs
	flag.Var(&peers, "peer", "address of a peer to connect to at startup; may be repeated")
	flag.Parse()

	log, closeLog, err := newFileLogger(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmview:", err)
		os.Exit(1)
	}
	defer closeLog()

	hashes, err := loadHashes(*hashesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmview:", err)
		os.Exit(1)
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmview:", err)
		os.Exit(1)
	}
	listenAddr, err := netip.ParseAddrPort(*listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmview: bad -listen address:", err)
		os.Exit(1)
	}
	cfg.MyAddr = listenAddr
	cfg.NumPieces = len(hashes)
	cfg.PieceLength = uint32(*pieceLength)
	cfg.TotalSize = *totalSize
	if *downloadDir != "" {
		cfg.DownloadPath = *downloadDir
	}

	d, err := dm.New(cfg, hashes, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmview:", err)
		os.Exit(1)
	}

	if cfg.NumPieces > 0 {
		if err := os.MkdirAll(cfg.DownloadPath, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "dmview:", err)
			os.Exit(1)
		}
		db, err := refpiecedb.Open(
			filepath.Join(cfg.DownloadPath, "data.bin"),
			cfg.NumPieces, cfg.PieceLength, cfg.TotalSize, log,
		)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dmview:", err)
			os.Exit(1)
		}
		d.SetPieceDB(db)
	}
	d.SetPieceSelector(nil)

	host := refhost.New(d, cfg, log)

	snapshots := make(chan dmstats.Snapshot, 1)
	host.OnSnapshot = func(s dmstats.Snapshot) {
		select {
		case snapshots <- s:
		default:
			// Drop the stale one and install the latest; the
			// dashboard only ever cares about the most recent tick.
			select {
			case <-snapshots:
			default:
			}
			snapshots <- s
		}
	}

	d.SetCallbacks(host.Callbacks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := host.Run(ctx); err != nil {
			log.Error("host stopped", "error", err)
		}
	}()

	for _, addr := range peers {
		addr := addr
		d.Exclusive(func() {
			if _, err := d.AddPeer(addr, nil); err != nil {
				log.Warn("add peer failed", "addr", addr, "error", err)
			}
		})
	}

	if _, err := tea.NewProgram(newModel(snapshots)).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "dmview:", err)
	}

	host.Close()
	_ = d.Close()
}

func newFileLogger(path string) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	opts := logging.DefaultOptions()
	opts.UseColor = false
	return slog.New(logging.NewPrettyHandler(f, &opts)), func() { _ = f.Close() }, nil
}

func loadHashes(path string) ([][sha1.Size]byte, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hashes [][sha1.Size]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		raw, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("bad hash line %q: %w", line, err)
		}
		if len(raw) != sha1.Size {
			return nil, fmt.Errorf("hash line %q is not %d bytes", line, sha1.Size)
		}

		var h [sha1.Size]byte
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	return hashes, scanner.Err()
}
