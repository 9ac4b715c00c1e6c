// Package export serializes the current rendered state of a viewer into a
// single standalone HTML document: the grid markup plus the text of every
// registered stylesheet inlined into one style block.
package export

import (
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/hashicorp/go-multierror"

	"github.com/probviz/probviz/go/skerr"
	"github.com/probviz/probviz/go/util"
	"github.com/probviz/probviz/traceviz/go/grid"
	"github.com/probviz/probviz/traceviz/go/render"
	"github.com/probviz/probviz/traceviz/go/store"
)

// DefaultCSS is the stylesheet of the built-in viewer. It is served with the
// viewer page and inlined into snapshots taken by headless sessions.
const DefaultCSS = `body {
  margin: 0;
  font-family: sans-serif;
  background: #fafafa;
}
.trace-grid {
  display: grid;
  gap: 8px;
  padding: 8px;
}
.trace-cell-slot {
  line-height: 0;
}
.trace-cell {
  background: #ffffff;
  border: 1px solid #dddddd;
}`

// Stylesheet names one CSS source to inline into a snapshot.
type Stylesheet struct {
	// Name identifies the source in partial-export warnings.
	Name string
	// Open returns a reader for the stylesheet text.
	Open func() (io.ReadCloser, error)
}

// StringStylesheet returns a Stylesheet backed by an in-memory string.
func StringStylesheet(name, contents string) Stylesheet {
	return Stylesheet{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(contents)), nil
		},
	}
}

// DefaultStylesheets returns the stylesheets of the built-in viewer.
func DefaultStylesheets() []Stylesheet {
	return []Stylesheet{StringStylesheet("builtin", DefaultCSS)}
}

var snapshotTemplate = template.Must(template.New("snapshot").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>trace snapshot</title>
<style>
{{.Style}}
</style>
</head>
<body>
<div class="trace-grid" style="grid-template-columns: repeat({{.Columns}}, {{.CellSize}}px);">
{{range .Cells}}<div class="trace-cell-slot" style="grid-row: {{.Row}}; grid-column: {{.Column}};">{{.SVG}}</div>
{{end}}</div>
</body>
</html>
`))

// snapshotCell is one rendered cell pinned to its grid position, so the
// document lays out identically to the live view regardless of CSS support
// for auto-placement.
type snapshotCell struct {
	Row    int
	Column int
	SVG    string
}

type snapshotContext struct {
	Style    string
	Columns  int
	CellSize float64
	Cells    []snapshotCell
}

// Snapshot renders the store's current traces into a standalone HTML
// document. Stylesheets that cannot be read are skipped and reported through
// the returned error while the document is still produced, so a non-nil error
// alongside non-empty content means a partial export, not a failed one.
func Snapshot(s *store.Store, vp grid.Viewport, sheets []Stylesheet) (string, error) {
	var warnings *multierror.Error

	var style strings.Builder
	for _, sheet := range sheets {
		r, err := sheet.Open()
		if err != nil {
			warnings = multierror.Append(warnings, skerr.Wrapf(err, "opening stylesheet %q", sheet.Name))
			continue
		}
		contents, err := io.ReadAll(r)
		util.Close(r)
		if err != nil {
			warnings = multierror.Append(warnings, skerr.Wrapf(err, "reading stylesheet %q", sheet.Name))
			continue
		}
		style.Write(contents)
		style.WriteString("\n")
	}

	traces := s.Traces()
	ids := make([]string, 0, len(traces))
	for id := range traces {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	layout := grid.Compute(len(ids), vp)
	info := s.Info()
	cells := make([]snapshotCell, 0, len(ids))
	for i, id := range ids {
		row, col := layout.Position(i)
		cells = append(cells, snapshotCell{
			// CSS grid lines are one-based.
			Row:    row + 1,
			Column: col + 1,
			SVG:    render.Cell(info, traces[id], layout.CellSize),
		})
	}

	var doc strings.Builder
	err := snapshotTemplate.Execute(&doc, snapshotContext{
		Style:    style.String(),
		Columns:  layout.Columns,
		CellSize: layout.CellSize,
		Cells:    cells,
	})
	if err != nil {
		// Template failure is a real failure, not a partial export.
		return "", skerr.Wrapf(err, "expanding snapshot template")
	}
	return doc.String(), warnings.ErrorOrNil()
}
