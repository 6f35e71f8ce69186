package xyz_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/eak1mov/mbextract/internal/mbtest"
	"github.com/eak1mov/mbextract/tile"
	"github.com/eak1mov/mbextract/xyz"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	rootDir := t.TempDir()

	tiles := map[tile.ID][]byte{
		{X: 0, Y: 0, Z: 0}: []byte("tile000"),
		{X: 1, Y: 1, Z: 1}: []byte("tile111"),
		{X: 0, Y: 0, Z: 6}: []byte("tile006"),
		{X: 6, Y: 6, Z: 6}: []byte("tile666"),
	}

	writer, err := xyz.NewWriter(xyz.Pattern(rootDir, "png"))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for tileID, tileData := range tiles {
		if err := writer.WriteTile(tileID, tileData); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", tileID, err)
		}
	}

	if got, want := writer.TilePath(tile.ID{X: 6, Y: 5, Z: 6}), filepath.Join(rootDir, "6", "6", "5.png"); got != want {
		t.Errorf("TilePath = %v, want = %v", got, want)
	}

	if diff := cmp.Diff(tiles, mbtest.ReadTree(t, rootDir, "png")); diff != "" {
		t.Errorf("written tiles mismatch (-want+got):\n%v", diff)
	}
}

func TestInvalidPattern(t *testing.T) {
	for _, pattern := range []string{"", "{z}/{x}.png", "{x}/{y}.png", "tiles/{z}/{y}"} {
		_, err := xyz.NewWriter(pattern)
		require.ErrorIs(t, err, xyz.ErrInvalidPattern, "NewWriter(%q)", pattern)
	}
}

// listingReader records the entries of dirs on its first Read,
// while the tile is being staged.
type listingReader struct {
	t       *testing.T
	r       io.Reader
	dirs    []string
	entries map[string][]string
}

func (l *listingReader) Read(p []byte) (int, error) {
	if l.entries == nil {
		l.entries = make(map[string][]string)
		for _, dir := range l.dirs {
			entries, err := os.ReadDir(dir)
			require.NoError(l.t, err)
			for _, entry := range entries {
				l.entries[dir] = append(l.entries[dir], entry.Name())
			}
		}
	}
	return l.r.Read(p)
}

func TestWriteTileFromStagesNextToTile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("TMPDIR", tmpDir)

	writer, err := xyz.NewWriter(xyz.Pattern(t.TempDir(), "png"))
	require.NoError(t, err)

	tileID := tile.ID{X: 1, Y: 0, Z: 1}
	tileDir := filepath.Dir(writer.TilePath(tileID))
	require.NoError(t, os.MkdirAll(tileDir, 0755))
	r := &listingReader{t: t, r: bytes.NewReader([]byte("payload")), dirs: []string{tileDir, tmpDir}}
	require.NoError(t, writer.WriteTileFrom(tileID, r))

	require.Len(t, r.entries[tileDir], 1, "temporary file not staged in the tile directory")
	require.NotEqual(t, "0.png", r.entries[tileDir][0])
	require.Empty(t, r.entries[tmpDir], "temporary file staged in TMPDIR")

	entries := mustReadDir(t, tileDir)
	require.Len(t, entries, 1)
	require.Equal(t, "0.png", entries[0].Name())
	require.Empty(t, mustReadDir(t, tmpDir))
}

func mustReadDir(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestWriteTileFromFailureLeavesNoFile(t *testing.T) {
	rootDir := t.TempDir()
	writer, err := xyz.NewWriter(xyz.Pattern(rootDir, "png"))
	require.NoError(t, err)

	tileID := tile.ID{X: 2, Y: 3, Z: 2}
	errBroken := errors.New("broken stream")
	payload := bytes.Repeat([]byte("0123456789"), 10_000)

	tileDir := filepath.Dir(writer.TilePath(tileID))
	r := &listingReader{
		t:    t,
		r:    io.MultiReader(bytes.NewReader(payload[:len(payload)/2]), iotest.ErrReader(errBroken)),
		dirs: []string{tileDir},
	}
	err = writer.WriteTileFrom(tileID, r)
	require.ErrorIs(t, err, errBroken)
	require.Len(t, r.entries[tileDir], 1, "temporary file not staged in the tile directory")

	require.NoFileExists(t, writer.TilePath(tileID))
	require.Empty(t, mustReadDir(t, tileDir), "temporary files left behind")
}

func TestWriteTileFromFailureKeepsPreviousFile(t *testing.T) {
	writer, err := xyz.NewWriter(xyz.Pattern(t.TempDir(), "png"))
	require.NoError(t, err)

	tileID := tile.ID{X: 0, Y: 0, Z: 0}
	require.NoError(t, writer.WriteTile(tileID, []byte("complete tile")))

	r := io.MultiReader(bytes.NewReader([]byte("par")), iotest.ErrReader(io.ErrUnexpectedEOF))
	require.Error(t, writer.WriteTileFrom(tileID, r))

	data, err := os.ReadFile(writer.TilePath(tileID))
	require.NoError(t, err)
	require.Equal(t, "complete tile", string(data))
}

func TestConcurrentWritesSameDirectory(t *testing.T) {
	rootDir := t.TempDir()
	pattern := xyz.Pattern(rootDir, "webp")

	writer, err := xyz.NewWriter(pattern)
	require.NoError(t, err)

	const rows = 64
	var wg sync.WaitGroup
	errs := make([]error, rows)
	for y := range rows {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tileID := tile.ID{X: 5, Y: uint32(y), Z: 6}
			errs[y] = writer.WriteTile(tileID, fmt.Appendf(nil, "row %d", y))
		}()
	}
	wg.Wait()
	require.NoError(t, errors.Join(errs...))

	require.Len(t, mustReadDir(t, filepath.Join(rootDir, "6", "5")), rows)

	require.Len(t, mbtest.ReadTree(t, rootDir, "webp"), rows)
}

func TestWritePermissions(t *testing.T) {
	rootDir := t.TempDir()
	writer, err := xyz.NewWriter(xyz.Pattern(rootDir, "png"), xyz.WithPermissions(0700, 0600))
	require.NoError(t, err)

	tileID := tile.ID{X: 0, Y: 1, Z: 1}
	require.NoError(t, writer.WriteTile(tileID, []byte("x")))

	info, err := os.Stat(writer.TilePath(tileID))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
