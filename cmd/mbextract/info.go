package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/eak1mov/mbextract/mb"
	"github.com/google/subcommands"
)

type infoCmd struct{}

func (c *infoCmd) Name() string           { return "info" }
func (c *infoCmd) Synopsis() string       { return "print tile format, tile count and metadata of MBTiles file" }
func (c *infoCmd) Usage() string          { return "mbextract info <file.mbtiles>\n" }
func (c *infoCmd) SetFlags(*flag.FlagSet) {}

func (c *infoCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	reader, err := mb.NewReader(f.Arg(0))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer reader.Close()

	format, err := reader.ReadFormat()
	if err != nil {
		fmt.Printf("format: %s (%v)\n", format, err)
	} else {
		fmt.Printf("format: %s\n", format)
	}

	count, err := reader.CountTiles()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tiles: %d\n", count)

	metadata, err := reader.ReadMetadata()
	if err != nil {
		fmt.Printf("metadata: unavailable (%v)\n", err)
		return subcommands.ExitSuccess
	}
	for _, name := range slices.Sorted(maps.Keys(metadata)) {
		if name == "json" {
			fmt.Printf("  %s: (%d bytes)\n", name, len(metadata[name]))
			continue
		}
		fmt.Printf("  %s: %s\n", name, metadata[name])
	}

	return subcommands.ExitSuccess
}
