package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/eak1mov/mbextract/extract"
	"github.com/eak1mov/mbextract/mb"
	"github.com/eak1mov/mbextract/tile"
	"github.com/eak1mov/mbextract/viewer"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type extractCmd struct {
	outputDir string
	tms       bool
	html      bool
	workers   int
	verbose   bool
}

func (c *extractCmd) Name() string     { return "extract" }
func (c *extractCmd) Synopsis() string { return "extract tiles from MBTiles file into z/x/y directory tree" }
func (c *extractCmd) Usage() string {
	return "mbextract extract [-o <dir> -tms -html -j <n> -v] <file.mbtiles>\n"
}
func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outputDir, "o", "", "Output directory (default: <input name>_tiles)")
	f.BoolVar(&c.tms, "tms", false, "Keep TMS row numbering instead of converting to XYZ")
	f.BoolVar(&c.html, "html", false, "Write index.html viewer page into the output directory")
	f.IntVar(&c.workers, "j", 1, "Number of tiles written in parallel")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

// defaultOutputDir derives "<name>_tiles" from "path/to/<name>.mbtiles".
func defaultOutputDir(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_tiles"
}

// viewerPage prefers archive metadata and falls back to what the export observed.
func viewerPage(format string, metadata map[string]string, summary extract.Summary) viewer.Page {
	page := viewer.NewPage(format, metadata)
	if page.Bound.IsZero() {
		page.Bound = summary.Bound
	}
	if _, found := metadata["minzoom"]; !found {
		page.MinZoom = summary.MinZoom
	}
	if _, found := metadata["maxzoom"]; !found {
		page.MaxZoom = summary.MaxZoom
	}
	return page
}

func (c *extractCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	inputPath := f.Arg(0)

	if _, err := os.Stat(inputPath); err != nil {
		log.Printf("input file not found: %q", inputPath)
		return subcommands.ExitFailure
	}

	if c.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	logger := slog.Default()

	outputDir := c.outputDir
	if outputDir == "" {
		outputDir = defaultOutputDir(inputPath)
	}
	scheme := tile.XYZ
	if c.tms {
		scheme = tile.TMS
	}

	fmt.Printf("Input file: %s\n", inputPath)
	fmt.Printf("Output directory: %s\n", outputDir)
	fmt.Printf("Coordinate scheme: %s\n", strings.ToUpper(scheme.String()))

	reader, err := mb.NewReader(inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer reader.Close()

	format, err := reader.ReadFormat()
	if err != nil {
		logger.Warn("using default tile format", "format", format, "err", err)
	}

	count, err := reader.CountTiles()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Found %d tiles to extract.\n", count)
	if count == 0 {
		fmt.Println("Nothing to extract.")
		return subcommands.ExitSuccess
	}

	bar := progressbar.NewOptions64(count,
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	summary, err := extract.Export(ctx, reader, outputDir, format, scheme,
		extract.WithLogger(logger),
		extract.WithWorkers(c.workers),
		extract.WithProgress(func(int64) { bar.Add(1) }),
	)
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		log.Printf("%d of %d tiles were written to %s", summary.TilesWritten, count, outputDir)
		return subcommands.ExitFailure
	}

	fmt.Printf("Extraction complete: %d tiles in %.2fs.\n", summary.TilesWritten, summary.Elapsed.Seconds())

	if c.html {
		metadata, err := reader.ReadMetadata()
		if err != nil {
			logger.Warn("viewer page without archive metadata", "err", err)
		}
		filePath, err := viewer.Write(outputDir, viewerPage(format, metadata, summary))
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Viewer page: %s\n", filePath)
	}

	return subcommands.ExitSuccess
}
