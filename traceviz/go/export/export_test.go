package export

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probviz/probviz/traceviz/go/grid"
	"github.com/probviz/probviz/traceviz/go/store"
	"github.com/probviz/probviz/traceviz/go/types"
)

var errUnreadable = errors.New("cross-origin stylesheet")

func seededStore() *store.Store {
	s := store.New()
	s.Initialize(types.Info{Xs: []float64{0, 1, 2}}, map[string]types.Trace{
		"b": {Ys: []float64{3, 2, 1}, Outliers: []bool{false, false, true}, Slope: -1, Intercept: 3, InlierStd: 0.2},
		"a": {Ys: []float64{1, 2, 3}, Outliers: []bool{false, true, false}, Slope: 1, Intercept: 0, InlierStd: 0.5},
	})
	return s
}

func TestSnapshot_InlinesStylesheetsAndRendersAllCells(t *testing.T) {
	doc, err := Snapshot(seededStore(), grid.Viewport{Width: 1000, Height: 800}, DefaultStylesheets())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, ".trace-grid")
	assert.Equal(t, 2, strings.Count(doc, "<svg"))
	assert.Contains(t, doc, `repeat(2,`)
}

func TestSnapshot_DeterministicCellOrder(t *testing.T) {
	vp := grid.Viewport{Width: 1000, Height: 800}
	a, err := Snapshot(seededStore(), vp, nil)
	require.NoError(t, err)
	b, err := Snapshot(seededStore(), vp, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSnapshot_UnreadableStylesheet_PartialExportWithWarning(t *testing.T) {
	sheets := []Stylesheet{
		{
			Name: "broken.css",
			Open: func() (io.ReadCloser, error) {
				return nil, errUnreadable
			},
		},
		StringStylesheet("good.css", ".trace-cell { border: none; }"),
	}
	doc, err := Snapshot(seededStore(), grid.Viewport{Width: 1000, Height: 800}, sheets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnreadable))
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 1)
	// The document is still produced with the readable stylesheet inlined.
	assert.Contains(t, doc, "border: none")
	assert.Contains(t, doc, "<svg")
}

func TestSnapshot_CellsArePinnedToGridPositions(t *testing.T) {
	s := store.New()
	traces := map[string]types.Trace{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		traces[id] = types.Trace{Ys: []float64{1, 2, 3}}
	}
	s.Initialize(types.Info{Xs: []float64{0, 1, 2}}, traces)

	doc, err := Snapshot(s, grid.Viewport{Width: 1000, Height: 800}, nil)
	require.NoError(t, err)
	// Seven traces lay out as five columns by two rows; the sixth and seventh
	// cells land on the second row.
	assert.Contains(t, doc, `style="grid-row: 1; grid-column: 1;"`)
	assert.Contains(t, doc, `style="grid-row: 1; grid-column: 5;"`)
	assert.Contains(t, doc, `style="grid-row: 2; grid-column: 1;"`)
	assert.Contains(t, doc, `style="grid-row: 2; grid-column: 2;"`)
	assert.NotContains(t, doc, "grid-row: 3")
	assert.Equal(t, 7, strings.Count(doc, "trace-cell-slot"))
}

func TestSnapshot_EmptyStore_ProducesDocumentWithoutCells(t *testing.T) {
	doc, err := Snapshot(store.New(), grid.Viewport{Width: 1000, Height: 800}, DefaultStylesheets())
	require.NoError(t, err)
	assert.NotContains(t, doc, "<svg")
}
