// Package refpiecedb is a reference, demo-grade implementation of
// internal/piecedb.PieceDB. It memory-maps a single backing file sized
// to the torrent's total content length and treats piece index ->
// byte offset the way the teacher's internal/storage.Store computes
// file-region overlap, but without the teacher's multi-file layout,
// disk-write goroutine, or channel plumbing: a single torrent here is
// always one contiguous region, and StorePiece/ReadBlock are plain
// synchronous copies into/out of the mapped region.
package refpiecedb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/prxssh/rabbitdm/internal/bitfield"
)

// DB memory-maps a fixed-size backing file and serves piece/block
// reads and writes directly against the mapping.
type DB struct {
	log *slog.Logger

	mu          sync.RWMutex
	file        *os.File
	mapping     mmap.MMap
	pieceLength uint32
	totalSize   uint64
	have        bitfield.Bitfield
}

// Open creates (or reuses) path as the backing file, truncated to
// totalSize, and maps it for random access. npieces/pieceLength
// describe the piece layout used to translate (pieceIdx, begin) into
// a file offset.
func Open(path string, npieces int, pieceLength uint32, totalSize uint64, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "refpiecedb")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("refpiecedb: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("refpiecedb: open: %w", err)
	}

	if totalSize == 0 {
		totalSize = 1
	}
	if err := f.Truncate(int64(totalSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("refpiecedb: truncate: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("refpiecedb: mmap: %w", err)
	}

	return &DB{
		log:         log,
		file:        f,
		mapping:     m,
		pieceLength: pieceLength,
		totalSize:   totalSize,
		have:        bitfield.New(npieces),
	}, nil
}

// ReadBlock returns a copy of length bytes starting at begin within
// piece pieceIdx. ok is false if the piece was never stored or the
// range falls outside the mapped file.
func (d *DB) ReadBlock(pieceIdx uint32, begin, length uint32) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.have.Has(int(pieceIdx)) {
		return nil, false
	}

	start := uint64(pieceIdx)*uint64(d.pieceLength) + uint64(begin)
	end := start + uint64(length)
	if end > uint64(len(d.mapping)) {
		return nil, false
	}

	out := make([]byte, length)
	copy(out, d.mapping[start:end])
	return out, true
}

// StorePiece copies data into the mapped region at pieceIdx's offset
// and marks the piece as stored.
func (d *DB) StorePiece(pieceIdx uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := uint64(pieceIdx) * uint64(d.pieceLength)
	end := start + uint64(len(data))
	if end > uint64(len(d.mapping)) {
		return fmt.Errorf("refpiecedb: piece %d out of bounds (end=%d, mapped=%d)", pieceIdx, end, len(d.mapping))
	}

	copy(d.mapping[start:end], data)
	d.have.Set(int(pieceIdx))
	return nil
}

// Has reports whether pieceIdx has already been stored.
func (d *DB) Has(pieceIdx uint32) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.have.Has(int(pieceIdx))
}

// Close flushes the mapping and closes the backing file.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.mapping.Flush(); err != nil {
		d.file.Close()
		return fmt.Errorf("refpiecedb: flush: %w", err)
	}
	if err := d.mapping.Unmap(); err != nil {
		d.file.Close()
		return fmt.Errorf("refpiecedb: unmap: %w", err)
	}
	return d.file.Close()
}
