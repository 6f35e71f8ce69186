package xyz

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/eak1mov/mbextract/tile"
	"github.com/google/renameio/v2"
)

// Writer writes tiles in XYZ format.
//
// Every tile is written to a temporary file next to its destination and
// renamed into place once complete, so a reader never observes a partial
// tile under its final name. Writer is safe for concurrent use as long as
// concurrent calls write different tiles.
type Writer struct {
	filePattern string
	dirMode     os.FileMode
	fileMode    os.FileMode
	logger      *slog.Logger

	dirs sync.Map // directories known to exist
}

type writerConfig struct {
	DirMode  os.FileMode
	FileMode os.FileMode
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

// WithPermissions sets the permission bits of created directories and files
// (before umask). The defaults are 0755 and 0644.
func WithPermissions(dirMode, fileMode os.FileMode) WriterOption {
	return func(c *writerConfig) {
		c.DirMode = dirMode
		c.FileMode = fileMode
	}
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
// Directories are created on demand.
func NewWriter(filePattern string, opts ...WriterOption) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}

	config := writerConfig{
		DirMode:  0755,
		FileMode: 0644,
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Writer{
		filePattern: filePattern,
		dirMode:     config.DirMode,
		fileMode:    config.FileMode,
		logger:      config.Logger,
	}, nil
}

// TilePath returns the file path the tile is written to.
func (w *Writer) TilePath(tileID tile.ID) string {
	return formatPattern(w.filePattern, tileID)
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	return w.WriteTileFrom(tileID, bytes.NewReader(tileData))
}

// WriteTileFrom streams tile data from r into the tile file.
// If r fails, the destination is left untouched.
func (w *Writer) WriteTileFrom(tileID tile.ID, r io.Reader) error {
	filePath := w.TilePath(tileID)

	if err := w.ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(filePath,
		renameio.WithTempDir(filepath.Dir(filePath)),
		renameio.WithPermissions(w.fileMode),
	)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, r); err != nil {
		return err
	}

	return pending.CloseAtomicallyReplace()
}

// ensureDir creates dirPath unless it was created before.
// Concurrent creation of the same directory is not an error.
func (w *Writer) ensureDir(dirPath string) error {
	if _, ok := w.dirs.Load(dirPath); ok {
		return nil
	}
	if err := os.MkdirAll(dirPath, w.dirMode); err != nil {
		return err
	}
	if _, loaded := w.dirs.LoadOrStore(dirPath, struct{}{}); !loaded {
		w.logger.Debug("mbextract: created directory", "path", dirPath)
	}
	return nil
}
