package refpiecedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreThenReadBlockRoundTrips(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "torrent.bin"), 2, 4, 8, nil)
	require.NoError(err)
	defer db.Close()

	require.False(db.Has(0))

	err = db.StorePiece(0, []byte("abcd"))
	require.NoError(err)
	require.True(db.Has(0))
	require.False(db.Has(1))

	got, ok := db.ReadBlock(0, 0, 4)
	require.True(ok)
	require.Equal([]byte("abcd"), got)

	got, ok = db.ReadBlock(0, 2, 2)
	require.True(ok)
	require.Equal([]byte("cd"), got)
}

func TestReadBlockUnstoredPieceFails(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "torrent.bin"), 2, 4, 8, nil)
	require.NoError(err)
	defer db.Close()

	_, ok := db.ReadBlock(1, 0, 4)
	require.False(ok, "a piece never stored should not be readable")
}

func TestStorePieceOutOfBoundsErrors(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "torrent.bin"), 2, 4, 8, nil)
	require.NoError(err)
	defer db.Close()

	err = db.StorePiece(1, []byte("too many bytes for one piece"))
	require.Error(err)
}

func TestReadBlockOutOfBoundsFails(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "torrent.bin"), 2, 4, 8, nil)
	require.NoError(err)
	defer db.Close()

	require.NoError(db.StorePiece(0, []byte("abcd")))

	_, ok := db.ReadBlock(0, 2, 10)
	require.False(ok, "a range past the mapped region should fail")
}

func TestReopenPreservesBytesOnDisk(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "torrent.bin")

	db, err := Open(path, 2, 4, 8, nil)
	require.NoError(err)
	require.NoError(db.StorePiece(0, []byte("abcd")))
	require.NoError(db.Close())

	db2, err := Open(path, 2, 4, 8, nil)
	require.NoError(err)
	defer db2.Close()

	// The have-bitfield is in-memory only, so a freshly reopened DB has
	// forgotten piece 0 was already stored ...
	require.False(db2.Has(0), "have-tracking does not survive a reopen")

	// ... but the bytes written to the backing file must survive,
	// regardless of have-tracking.
	require.Equal([]byte("abcd"), []byte(db2.mapping[0:4]))
}
