// Package piecedb defines the capability trait the download manager
// needs from on-disk storage: random-access block reads (to answer a
// REQUEST) and whole-piece writes (once a piece verifies). It is pure
// interface — the core never depends on a file format or a specific
// backing store, per spec.md's explicit out-of-scope boundary around
// on-disk persistence. internal/refpiecedb supplies a demo/test
// implementation.
package piecedb

// PieceDB stores and retrieves a single torrent's pieces by index,
// with random-access block granularity for serving REQUESTs.
type PieceDB interface {
	// ReadBlock returns length bytes starting at begin within piece
	// pieceIdx. ok is false if the piece isn't stored yet or the range
	// is out of bounds.
	ReadBlock(pieceIdx uint32, begin, length uint32) (data []byte, ok bool)

	// StorePiece persists a fully verified piece's bytes.
	StorePiece(pieceIdx uint32, data []byte) error

	// Has reports whether pieceIdx has already been stored, used by
	// the download manager's startup scan (check_pieces) to
	// fast-forward the SparseCounter and selector without replaying
	// block writes.
	Has(pieceIdx uint32) bool

	// Close releases any backing resources (file handles, mappings).
	Close() error
}
