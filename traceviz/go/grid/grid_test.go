package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_SmallCounts_OneRowWithNColumns(t *testing.T) {
	for n := 1; n <= 5; n++ {
		l := Compute(n, Viewport{Width: 2000, Height: 400})
		assert.Equal(t, n, l.Columns, "n=%d", n)
		assert.Equal(t, 1, l.Rows, "n=%d", n)
	}
}

func TestCompute_SixTraces_WrapsToSecondRow(t *testing.T) {
	l := Compute(6, Viewport{Width: 2000, Height: 800})
	assert.Equal(t, 5, l.Columns)
	assert.Equal(t, 2, l.Rows)
}

func TestCompute_ZeroTraces_EmptyLayout(t *testing.T) {
	assert.Equal(t, Layout{}, Compute(0, Viewport{Width: 1000, Height: 800}))
	assert.Equal(t, Layout{}, Compute(-1, Viewport{Width: 1000, Height: 800}))
}

func TestCompute_SevenTracesInThousandByEightHundred_CellCappedByWidth(t *testing.T) {
	l := Compute(7, Viewport{Width: 1000, Height: 800})
	assert.Equal(t, 5, l.Columns)
	assert.Equal(t, 2, l.Rows)
	// height/rows is 400, but (1000-100)/5 = 180 wins.
	assert.InDelta(t, 180, l.CellSize, 1e-9)
	assert.LessOrEqual(t, l.CellSize, 180.0)
}

func TestCompute_TallViewport_CellCappedAtMaxSize(t *testing.T) {
	l := Compute(1, Viewport{Width: 5000, Height: 3000})
	assert.InDelta(t, 500, l.CellSize, 1e-9)
}

func TestCompute_TinyViewport_SizeNeverNegative(t *testing.T) {
	l := Compute(3, Viewport{Width: 50, Height: 100})
	assert.GreaterOrEqual(t, l.CellSize, 0.0)
}

func TestPosition_RowMajorOrder(t *testing.T) {
	l := Compute(7, Viewport{Width: 1000, Height: 800})
	row, col := l.Position(0)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
	row, col = l.Position(6)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)
}
