// Package grid computes the cell geometry of the trace grid from the current
// trace count and viewport. The layout is derived state: it is recomputed on
// every trace-count or viewport change and never stored.
package grid

import "math"

const (
	// maxColumns caps the grid at five columns regardless of trace count.
	maxColumns = 5

	// maxCellSize caps the pixel size of a single cell.
	maxCellSize = 500

	// viewportMargin is the horizontal slack kept out of the column width
	// computation.
	viewportMargin = 100
)

// Viewport is the pixel size of the area the grid is laid out in.
type Viewport struct {
	Width  float64
	Height float64
}

// Layout is the computed grid geometry. Cells are square: CellSize is used
// for both the width and the height of each cell's canvas.
type Layout struct {
	Columns  int
	Rows     int
	CellSize float64
}

// Compute returns the layout for n traces in the given viewport. n <= 0
// yields the zero Layout: no cells, nothing to divide by.
func Compute(n int, vp Viewport) Layout {
	if n <= 0 {
		return Layout{}
	}
	columns := n
	if columns > maxColumns {
		columns = maxColumns
	}
	rows := int(math.Ceil(float64(n) / float64(columns)))

	size := vp.Height / float64(rows)
	widthCap := math.Min(maxCellSize, (vp.Width-viewportMargin)/float64(columns))
	if size > widthCap {
		size = widthCap
	}
	if size < 0 {
		size = 0
	}
	return Layout{
		Columns:  columns,
		Rows:     rows,
		CellSize: size,
	}
}

// Position returns the zero-based row and column of the i-th cell.
func (l Layout) Position(i int) (row, col int) {
	return i / l.Columns, i % l.Columns
}
