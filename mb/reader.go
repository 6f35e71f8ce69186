// Package mb provides API for reading tiles and metadata in MBTiles format.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/eak1mov/mbextract/tile"
)

// DefaultFormat is the tile format assumed when the archive does not declare one.
const DefaultFormat = "png"

var (
	// ErrUnreadable reports an archive that cannot be used at all:
	// the file is missing, is not a database, or has no tiles table.
	ErrUnreadable = errors.New("mbextract: archive unreadable")

	// ErrNoFormat reports that the tile format could not be determined
	// from the archive metadata. It is recoverable: DefaultFormat applies.
	ErrNoFormat = errors.New("mbextract: tile format not declared")
)

// Reader reads MBTiles archives. It implements tile.Visitor.
//
// Tile IDs passed to and returned from Reader use the TMS convention,
// i.e. exactly the coordinates stored in the archive.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader opens the MBTiles file at filePath read-only.
//
// The returned Reader must be closed after use to release database resources.
// Any failure wraps ErrUnreadable.
func NewReader(filePath string) (*Reader, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	// Preparing against the tiles table checks both that the file is a
	// database and that it has a tile source.
	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		if name.Valid {
			metadata[name.String] = value.String
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metadata, nil
}

// ReadFormat returns the tile format declared in the archive metadata.
//
// The returned format is always usable. If the format key is absent or empty,
// or the metadata table cannot be queried, ReadFormat returns DefaultFormat
// together with an error wrapping ErrNoFormat, which callers should treat
// as a warning.
func (r *Reader) ReadFormat() (string, error) {
	var format sql.NullString
	err := r.db.QueryRow("SELECT value FROM metadata WHERE name = 'format'").Scan(&format)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DefaultFormat, fmt.Errorf("%w: no format key, using %q", ErrNoFormat, DefaultFormat)
	case err != nil:
		return DefaultFormat, fmt.Errorf("%w: %w, using %q", ErrNoFormat, err, DefaultFormat)
	case !format.Valid || format.String == "":
		return DefaultFormat, fmt.Errorf("%w: empty format value, using %q", ErrNoFormat, DefaultFormat)
	}
	return format.String, nil
}

// CountTiles returns the number of tile rows in the archive.
func (r *Reader) CountTiles() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	var tileData []byte
	if err := r.stmt.QueryRow(tileID.Z, tileID.X, tileID.Y).Scan(&tileData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return make([]byte, 0), nil
		}
		return nil, err
	}

	return tileData, nil
}

// VisitTiles streams all tile rows through the visitor, one row at a time.
// Rows are visited in the order the database returns them.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	rows, err := r.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var x, y, z uint32
		var tileData []byte

		if err := rows.Scan(&z, &x, &y, &tileData); err != nil {
			return err
		}

		if err := visitor(tile.ID{X: x, Y: y, Z: z}, tileData); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return err
	}

	return nil
}
