// Package xyz provides API for reading and writing tiles in XYZ directory format,
// where tiles are stored as individual files with paths like "/z/x/y.ext".
package xyz

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eak1mov/mbextract/tile"
)

var ErrInvalidPattern = errors.New("mbextract: invalid file pattern")

var placeholders = []string{"{x}", "{y}", "{z}"}

// Pattern returns the file pattern "rootDir/{z}/{x}/{y}.ext" for tiles of the given format.
func Pattern(rootDir, format string) string {
	return filepath.Join(rootDir, "{z}", "{x}", "{y}."+format)
}

func validatePattern(pattern string) error {
	for _, p := range placeholders {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func formatPattern(pattern string, tileID tile.ID) string {
	return strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(tileID.X), 10),
		"{y}", strconv.FormatUint(uint64(tileID.Y), 10),
		"{z}", strconv.FormatUint(uint64(tileID.Z), 10),
	).Replace(pattern)
}
