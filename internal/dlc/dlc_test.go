package dlc

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

// writeContent drops a file into the tree with a valid trailing checksum.
func writeContent(t *testing.T, root, serial, typ, name string, payload []byte) []byte {
	t.Helper()
	data := binary.LittleEndian.AppendUint16(payload, crypto.Crc16(payload))
	dir := filepath.Join(root, serial, typ)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	return data
}

func TestLoadMissingRoot(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, l.Entries("IRAO", "CGEAR"))
}

func TestIndexesAreOrderedByName(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, "IRAO", "CGEAR", "zebra.bin", []byte{1})
	writeContent(t, root, "IRAO", "CGEAR", "alpha.bin", []byte{2})
	writeContent(t, root, "IRAO", "CGEAR", "mango.bin", []byte{3})
	writeContent(t, root, "IRAO", "ZUKAN", "dex.bin", []byte{4})

	l, err := Load(root)
	require.NoError(t, err)

	entries := l.Entries("IRAO", "CGEAR")
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha.bin", entries[0].Name)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "zebra.bin", entries[2].Name)
	assert.Equal(t, 3, entries[2].Index)

	assert.Equal(t, 2, l.Index("IRAO", "CGEAR", "mango.bin"))
	assert.Equal(t, 1, l.Index("IRAO", "ZUKAN", "dex.bin"))
	assert.Equal(t, 0, l.Index("IRAO", "CGEAR", "missing.bin"))
}

func TestReservedNamesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, "IRAO", "MUSICAL", "none", []byte{1})
	writeContent(t, root, "IRAO", "MUSICAL", "show.bin", []byte{2})

	l, err := Load(root)
	require.NoError(t, err)

	entries := l.Entries("IRAO", "MUSICAL")
	require.Len(t, entries, 1)
	assert.Equal(t, "show.bin", entries[0].Name)
	assert.Equal(t, 1, entries[0].Index)
}

func TestContentWithEmbeddedChecksum(t *testing.T) {
	root := t.TempDir()
	data := writeContent(t, root, "IRAO", "CGEAR", "skin.bin", []byte{9, 8, 7})

	l, err := Load(root)
	require.NoError(t, err)

	e, ok := l.Entry("IRAO", "CGEAR", "skin.bin")
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), e.Size)

	got, err := l.Content(e)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestContentChecksumIsAppended(t *testing.T) {
	root := t.TempDir()
	payload := []byte{1, 2, 3, 4, 5}
	dir := filepath.Join(root, "IRAO", "CGEAR")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.bin"), payload, 0o644))

	l, err := Load(root)
	require.NoError(t, err)

	e, ok := l.Entry("IRAO", "CGEAR", "raw.bin")
	require.True(t, ok)
	assert.Equal(t, int64(len(payload)+2), e.Size)

	got, err := l.Content(e)
	require.NoError(t, err)
	require.Len(t, got, len(payload)+2)
	assert.Equal(t, payload, got[:len(payload)])
	assert.Equal(t, crypto.Crc16(payload), binary.LittleEndian.Uint16(got[len(payload):]))
}

func TestUntypedFilesAtSerialLevel(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ADAE")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gift.bin"), []byte{1, 2}, 0o644))

	l, err := Load(root)
	require.NoError(t, err)

	entries := l.Entries("ADAE", "")
	require.Len(t, entries, 1)
	assert.Equal(t, "gift.bin", entries[0].Name)
	assert.Equal(t, 1, entries[0].Index)

	raw, err := l.RawContent(entries[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, raw)
}
