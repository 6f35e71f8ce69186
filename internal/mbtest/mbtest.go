// Package mbtest builds MBTiles fixtures for tests.
package mbtest

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/eak1mov/mbextract/mb"
	"github.com/eak1mov/mbextract/tile"
	_ "github.com/mattn/go-sqlite3"
)

// Archive writes tiles (keyed by stored TMS coordinates) into a new
// MBTiles file under t.TempDir() and returns its path.
func Archive(t testing.TB, tiles map[tile.ID][]byte, opts ...mb.WriterOption) string {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), "tiles.mbtiles")

	writer, err := mb.NewWriter(filePath, opts...)
	if err != nil {
		t.Fatalf("mb.NewWriter failed: %v", err)
	}
	defer writer.Close()

	for tileID, tileData := range tiles {
		if err := writer.WriteTile(tileID, tileData); err != nil {
			t.Fatalf("WriteTile(%v) failed: %v", tileID, err)
		}
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	return filePath
}

// Pyramid returns every tile of zoom levels [0, maxZoom] keyed by TMS
// coordinates, with data identifying the tile.
func Pyramid(maxZoom uint32) map[tile.ID][]byte {
	tiles := make(map[tile.ID][]byte)
	for z := range maxZoom + 1 {
		for x := range uint32(1) << z {
			for y := range uint32(1) << z {
				tileID := tile.ID{X: x, Y: y, Z: z}
				tiles[tileID] = fmt.Appendf(nil, "tms:%v", tileID)
			}
		}
	}
	return tiles
}

// Exec runs statements against the sqlite database at filePath,
// creating it if needed.
func Exec(t testing.TB, filePath string, statements ...string) {
	t.Helper()

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("%q failed: %v", statement, err)
		}
	}
}

// ReadTree collects the tiles stored under rootDir as <z>/<x>/<y>.<format>.
// Files not following that layout (viewer page, other formats, leftover
// temporary files) are skipped.
func ReadTree(t testing.TB, rootDir, format string) map[tile.ID][]byte {
	t.Helper()

	tiles := make(map[tile.ID][]byte)
	err := filepath.WalkDir(rootDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(rootDir, filePath)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		name, found := strings.CutSuffix(parts[2], "."+format)
		if !found {
			return nil
		}

		var coords [3]uint32 // z, x, y
		for i, part := range []string{parts[0], parts[1], name} {
			value, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return nil
			}
			coords[i] = uint32(value)
		}

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		tiles[tile.ID{X: coords[1], Y: coords[2], Z: coords[0]}] = tileData
		return nil
	})
	if err != nil {
		t.Fatalf("reading tile tree %s: %v", rootDir, err)
	}
	return tiles
}
