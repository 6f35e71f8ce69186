// Package viewer generates a static HTML page displaying an exported tile directory.
package viewer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/paulmach/orb"
)

// FileName is the name of the page written into the tile directory.
const FileName = "index.html"

//go:embed index.html.tmpl
var pageTemplate string

var tmpl = template.Must(template.New(FileName).Parse(pageTemplate))

// Page describes the map shown by the viewer.
// Tiles are always addressed as {z}/{x}/{y}.<Format> relative to the page.
type Page struct {
	Title       string
	Attribution string
	Format      string
	MinZoom     uint32
	MaxZoom     uint32
	Bound       orb.Bound
}

// NewPage fills a Page from MBTiles metadata (name, attribution, minzoom,
// maxzoom, bounds). Malformed or missing values are left zero.
func NewPage(format string, metadata map[string]string) Page {
	page := Page{
		Title:       metadata["name"],
		Attribution: metadata["attribution"],
		Format:      format,
		MaxZoom:     18,
	}

	if value, found := metadata["minzoom"]; found {
		fmt.Sscanf(value, "%d", &page.MinZoom)
	}
	if value, found := metadata["maxzoom"]; found {
		fmt.Sscanf(value, "%d", &page.MaxZoom)
	}

	if value, found := metadata["bounds"]; found {
		var coords [4]float64
		if _, err := fmt.Sscanf(value, "%f,%f,%f,%f", &coords[0], &coords[1], &coords[2], &coords[3]); err == nil {
			page.Bound = orb.Bound{Min: orb.Point{coords[0], coords[1]}, Max: orb.Point{coords[2], coords[3]}}
		}
	}

	return page
}

type pageData struct {
	Page
	TileURL  string
	HasBound bool
}

// Render writes the HTML page to a buffer.
func Render(page Page) ([]byte, error) {
	if page.Title == "" {
		page.Title = "Tiles"
	}
	data := pageData{
		Page:     page,
		TileURL:  "{z}/{x}/{y}." + page.Format,
		HasBound: !page.Bound.IsZero(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the page into dir/index.html and returns the file path.
func Write(dir string, page Page) (string, error) {
	content, err := Render(page)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(dir, FileName)
	if err := renameio.WriteFile(filePath, content, 0644); err != nil {
		return "", err
	}
	return filePath, nil
}
