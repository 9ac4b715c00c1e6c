// Package render turns one trace into SVG geometry for one grid cell.
//
// Rendering is pure: identical (info, trace, size) inputs always produce
// identical markup. The logical-to-pixel mapping is affine and derived per
// trace: the x-range comes from the shared Info, the y-range from that
// trace's own samples, so two cells in the same grid may use different
// vertical scales.
package render

import (
	"fmt"
	"strings"

	"github.com/probviz/probviz/traceviz/go/types"
)

const (
	// marginFrac reserves this fraction of the cell size on all four sides.
	marginFrac = 0.1

	// lineOverhang extends the fitted line this many pixels beyond each
	// canvas edge in screen space, so the line spans the visible cell
	// regardless of the data range.
	lineOverhang = 200

	inlierColor  = "#1f78b4"
	outlierColor = "#e31a1c"
	lineColor    = "#333333"
	bandColor    = "#666666"
	bandOpacity  = 0.2
	pointRadius  = 3
)

// Mapper is the affine logical-to-pixel transform for one cell.
type Mapper struct {
	minX, maxX float64
	minY, maxY float64
	size       float64
	margin     float64
}

// NewMapper derives the transform for rendering trace t with shared info into
// a square cell of the given pixel size. Degenerate ranges (a single x value,
// all samples equal) are widened symmetrically so the transform stays
// invertible.
func NewMapper(info types.Info, t types.Trace, size float64) Mapper {
	minX, maxX := bounds(info.Xs)
	minY, maxY := bounds(t.Ys)
	return Mapper{
		minX:   minX,
		maxX:   maxX,
		minY:   minY,
		maxY:   maxY,
		size:   size,
		margin: marginFrac * size,
	}
}

func bounds(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 1
	}
	min, max := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		min -= 0.5
		max += 0.5
	}
	return min, max
}

func (m Mapper) inner() float64 {
	return m.size - 2*m.margin
}

// ToPixelX maps a logical x coordinate to screen space.
func (m Mapper) ToPixelX(x float64) float64 {
	return m.margin + (x-m.minX)/(m.maxX-m.minX)*m.inner()
}

// ToPixelY maps a logical y coordinate to screen space. The SVG y axis grows
// downward, so the mapping is flipped.
func (m Mapper) ToPixelY(y float64) float64 {
	return m.size - m.margin - (y-m.minY)/(m.maxY-m.minY)*m.inner()
}

// ToLogicalX inverts ToPixelX.
func (m Mapper) ToLogicalX(px float64) float64 {
	return m.minX + (px-m.margin)/m.inner()*(m.maxX-m.minX)
}

// ToLogicalY inverts ToPixelY.
func (m Mapper) ToLogicalY(py float64) float64 {
	return m.minY + (m.size-m.margin-py)/m.inner()*(m.maxY-m.minY)
}

// Cell renders one trace into a complete <svg> element of the given size.
// Draw order is band, fitted line, then sample points so the points stay
// visible on top.
//
// A size of zero or less (a viewport too small for any cell) yields an empty
// element: with no inner area the transform has nothing to map onto.
func Cell(info types.Info, t types.Trace, size float64) string {
	if size <= 0 {
		return `<svg class="trace-cell" width="0" height="0" xmlns="http://www.w3.org/2000/svg"></svg>`
	}
	m := NewMapper(info, t, size)
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg class="trace-cell" width="%.2f" height="%.2f" xmlns="http://www.w3.org/2000/svg">`, size, size)

	// The fitted line and its band are evaluated at two x positions pushed
	// past the canvas edges, inverse-mapped back to logical space.
	px0 := -float64(lineOverhang)
	px1 := size + lineOverhang
	lx0 := m.ToLogicalX(px0)
	lx1 := m.ToLogicalX(px1)
	ly0 := t.Slope*lx0 + t.Intercept
	ly1 := t.Slope*lx1 + t.Intercept

	band := 2 * t.InlierStd
	fmt.Fprintf(&sb,
		`<polygon points="%.2f,%.2f %.2f,%.2f %.2f,%.2f %.2f,%.2f" fill="%s" fill-opacity="%.2f"/>`,
		px0, m.ToPixelY(ly0+band),
		px1, m.ToPixelY(ly1+band),
		px1, m.ToPixelY(ly1-band),
		px0, m.ToPixelY(ly0-band),
		bandColor, bandOpacity)

	fmt.Fprintf(&sb,
		`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="2"/>`,
		px0, m.ToPixelY(ly0), px1, m.ToPixelY(ly1), lineColor)

	n := len(info.Xs)
	if len(t.Ys) < n {
		n = len(t.Ys)
	}
	for i := 0; i < n; i++ {
		color := inlierColor
		if i < len(t.Outliers) && t.Outliers[i] {
			color = outlierColor
		}
		fmt.Fprintf(&sb,
			`<circle cx="%.2f" cy="%.2f" r="%d" fill="%s"/>`,
			m.ToPixelX(info.Xs[i]), m.ToPixelY(t.Ys[i]), pointRadius, color)
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}
