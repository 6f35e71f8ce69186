// Package extract writes the tiles of a tileset into a z/x/y directory tree.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eak1mov/mbextract/tile"
	"github.com/eak1mov/mbextract/xyz"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"
)

// Summary describes a finished (or aborted) export.
type Summary struct {
	TilesWritten int64
	Elapsed      time.Duration

	// Zoom range and geographic extent of the written tiles.
	// Meaningless when TilesWritten is zero.
	MinZoom uint32
	MaxZoom uint32
	Bound   orb.Bound
}

// WriteError reports a tile that could not be written. It aborts the export.
type WriteError struct {
	TileID  tile.ID // as read from the source
	Path    string
	Written int64 // tiles committed when Export returned
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("mbextract: writing tile %v to %q (after %d tiles): %v", e.TileID, e.Path, e.Written, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type config struct {
	Logger   *slog.Logger
	Progress func(written int64)
	Workers  int
	Writer   []xyz.WriterOption
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithProgress registers a callback invoked after each tile file is published,
// with the number of tiles written so far. Calls are serialized and the count
// increases by one on every call.
func WithProgress(progress func(written int64)) Option {
	return func(c *config) { c.Progress = progress }
}

// WithWorkers sets the number of tiles written in parallel.
// The default of 1 writes tiles strictly one after another.
func WithWorkers(workers int) Option {
	return func(c *config) { c.Workers = max(workers, 1) }
}

// WithWriterOptions passes options to the underlying xyz.Writer.
func WithWriterOptions(opts ...xyz.WriterOption) Option {
	return func(c *config) { c.Writer = append(c.Writer, opts...) }
}

type exporter struct {
	writer   *xyz.Writer
	scheme   tile.Scheme
	logger   *slog.Logger
	progress func(int64)

	mu      sync.Mutex
	summary Summary
}

// Export reads every tile from source and writes it to
// outputDir/<z>/<x>/<y>.<format>, converting rows from the TMS convention
// of the source to scheme. The output directory is created on the first tile.
//
// The first failed write stops the export; the error is a *WriteError and
// files already written stay in place. Cancelling ctx stops the export
// between tiles. In both cases the returned Summary counts the tiles written.
func Export(ctx context.Context, source tile.Visitor, outputDir, format string, scheme tile.Scheme, opts ...Option) (Summary, error) {
	cfg := config{
		Logger:  slog.New(slog.DiscardHandler),
		Workers: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	writer, err := xyz.NewWriter(xyz.Pattern(outputDir, format), append([]xyz.WriterOption{xyz.WithLogger(cfg.Logger)}, cfg.Writer...)...)
	if err != nil {
		return Summary{}, err
	}

	e := &exporter{
		writer:   writer,
		scheme:   scheme,
		logger:   cfg.Logger,
		progress: cfg.Progress,
	}

	e.logger.Debug("mbextract: export started", "dir", outputDir, "format", format, "scheme", scheme, "workers", cfg.Workers)
	start := time.Now()

	if cfg.Workers > 1 {
		err = e.runParallel(ctx, source, cfg.Workers)
	} else {
		err = e.run(ctx, source)
	}

	summary := e.result()
	summary.Elapsed = time.Since(start)

	e.logger.Debug("mbextract: export finished", "tiles", summary.TilesWritten, "elapsed", summary.Elapsed, "err", err)
	return summary, err
}

func (e *exporter) run(ctx context.Context, source tile.Visitor) error {
	err := source.VisitTiles(func(tileID tile.ID, tileData []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.writeTile(tileID, tileData)
	})
	return e.wrapError(err)
}

// runParallel keeps reading the source on the calling goroutine
// and hands tiles to at most workers writers.
func (e *exporter) runParallel(ctx context.Context, source tile.Visitor, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	visitErr := source.VisitTiles(func(tileID tile.ID, tileData []byte) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		tileData = bytes.Clone(tileData)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return e.writeTile(tileID, tileData)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		// Tiles still in flight when the write failed may have been
		// committed since the error was built.
		var writeErr *WriteError
		if errors.As(err, &writeErr) {
			writeErr.Written = e.written()
		}
		return err
	}
	return e.wrapError(visitErr)
}

func (e *exporter) wrapError(err error) error {
	var writeErr *WriteError
	switch {
	case err == nil, errors.As(err, &writeErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("mbextract: export interrupted after %d tiles: %w", e.written(), err)
	default:
		return fmt.Errorf("mbextract: reading tiles: %w", err)
	}
}

func (e *exporter) writeTile(stored tile.ID, tileData []byte) error {
	if !stored.Valid() {
		return &WriteError{TileID: stored, Written: e.written(), Err: tile.ErrInvalidID}
	}

	target := e.scheme.FromTMS(stored)
	if err := e.writer.WriteTile(target, tileData); err != nil {
		return &WriteError{TileID: stored, Path: e.writer.TilePath(target), Written: e.written(), Err: err}
	}

	e.commit(stored)
	return nil
}

func (e *exporter) commit(stored tile.ID) {
	// maptile numbers rows from the top.
	xyzID := stored.FlipY()
	bound := maptile.New(xyzID.X, xyzID.Y, maptile.Zoom(xyzID.Z)).Bound()

	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.summary
	if s.TilesWritten == 0 {
		s.MinZoom, s.MaxZoom, s.Bound = stored.Z, stored.Z, bound
	} else {
		s.MinZoom = min(s.MinZoom, stored.Z)
		s.MaxZoom = max(s.MaxZoom, stored.Z)
		s.Bound = s.Bound.Union(bound)
	}
	s.TilesWritten++

	if e.progress != nil {
		e.progress(s.TilesWritten)
	}
}

func (e *exporter) written() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary.TilesWritten
}

func (e *exporter) result() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}
