package viewer_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eak1mov/mbextract/viewer"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	metadata := map[string]string{
		"name":        "Test <map>",
		"attribution": "© contributors",
		"minzoom":     "2",
		"maxzoom":     "14",
		"bounds":      "-10.5,40,20,60.25",
	}

	want := viewer.Page{
		Title:       "Test <map>",
		Attribution: "© contributors",
		Format:      "jpg",
		MinZoom:     2,
		MaxZoom:     14,
		Bound:       orb.Bound{Min: orb.Point{-10.5, 40}, Max: orb.Point{20, 60.25}},
	}
	if diff := cmp.Diff(want, viewer.NewPage("jpg", metadata)); diff != "" {
		t.Errorf("NewPage mismatch (-want+got):\n%v", diff)
	}
}

func TestNewPageMalformed(t *testing.T) {
	page := viewer.NewPage("png", map[string]string{"bounds": "everywhere", "maxzoom": "high"})
	require.True(t, page.Bound.IsZero())
	require.EqualValues(t, 18, page.MaxZoom)
	require.Equal(t, "png", page.Format)
}

func TestRender(t *testing.T) {
	content, err := viewer.Render(viewer.Page{
		Title:   "<script>alert(1)</script>",
		Format:  "webp",
		MaxZoom: 5,
		Bound:   orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}},
	})
	require.NoError(t, err)

	html := string(content)
	require.NotContains(t, html, "<script>alert(1)</script>")
	require.Contains(t, html, "{z}")
	require.Contains(t, html, "{y}.webp")
	require.Contains(t, html, "fitBounds")
	require.NotContains(t, html, "setView")
}

func TestRenderWithoutBound(t *testing.T) {
	content, err := viewer.Render(viewer.Page{Format: "png"})
	require.NoError(t, err)

	html := string(content)
	require.Contains(t, html, "<title>Tiles</title>")
	require.Contains(t, html, "setView")
	require.NotContains(t, html, "fitBounds")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	filePath, err := viewer.Write(dir, viewer.Page{Format: "png"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, viewer.FileName), filePath)

	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(content), "<!DOCTYPE html>"))
}
