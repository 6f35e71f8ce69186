package mb

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/eak1mov/mbextract/tile"
)

// Writer creates MBTiles archives.
//
// Tile IDs are stored as given, so callers pass TMS coordinates.
// All tiles are inserted in one transaction committed by Finalize.
type Writer struct {
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt
	logger *slog.Logger
	count  int64
}

type writerConfig struct {
	Metadata      map[string]string
	MetadataTable bool
	Logger        *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

// WithoutMetadataTable omits the metadata table entirely,
// as some hand-made archives do.
func WithoutMetadataTable() WriterOption {
	return func(c *writerConfig) { c.MetadataTable = false }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

const schemaTiles = `
	CREATE TABLE tiles (
		zoom_level INTEGER,
		tile_column INTEGER,
		tile_row INTEGER,
		tile_data BLOB
	)`

// NewWriter creates a new MBTiles file at filePath.
func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	config := writerConfig{
		MetadataTable: true,
		Logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A single connection keeps the transaction and schema on the same handle.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schemaTiles); err != nil {
		return nil, err
	}

	if config.MetadataTable {
		if _, err = db.Exec("CREATE TABLE metadata (name TEXT, value TEXT)"); err != nil {
			return nil, err
		}
		for name, value := range config.Metadata {
			if _, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", name, value); err != nil {
				return nil, err
			}
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	insert, err := tx.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &Writer{db: db, tx: tx, insert: insert, logger: config.Logger}, nil
}

// Close releases the database. Tiles not committed by Finalize are discarded.
func (w *Writer) Close() error {
	err := w.insert.Close()
	if rbErr := w.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		err = errors.Join(err, rbErr)
	}
	return errors.Join(err, w.db.Close())
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if _, err := w.insert.Exec(tileID.Z, tileID.X, tileID.Y, tileData); err != nil {
		return err
	}
	w.count++
	return nil
}

// Finalize commits written tiles and builds the tile index.
func (w *Writer) Finalize() error {
	w.logger.Debug("mbextract: committing tiles", "count", w.count)
	if err := w.tx.Commit(); err != nil {
		return err
	}

	w.logger.Debug("mbextract: creating index")
	_, err := w.db.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")
	return err
}
