package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a grid of braille cells. Each cell also carries a color and a
// priority; a lower-priority write never recolors a cell.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	color    [][]lipgloss.Color
	priority [][]int
	overlay  [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:    w,
		Height:   h,
		Grid:     make([][]rune, h),
		color:    make([][]lipgloss.Color, h),
		priority: make([][]int, h),
		overlay:  make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		c.color[i] = make([]lipgloss.Color, w)
		c.priority[i] = make([]int, w)
		c.overlay[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// SubWidth and SubHeight are the canvas size in dots.
func (c *Canvas) SubWidth() int  { return c.Width * 2 }
func (c *Canvas) SubHeight() int { return c.Height * 4 }

func (c *Canvas) cell(x, y int) (row, col int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	if col >= c.Width || row >= c.Height {
		return 0, 0, false
	}
	return row, col, true
}

// Set sets a dot at (x, y) in sub-pixel coordinates.
func (c *Canvas) Set(x, y int) {
	if row, col, ok := c.cell(x, y); ok {
		c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
	}
}

// Plot sets a dot and colors its cell unless a higher priority owns it.
func (c *Canvas) Plot(x, y int, color lipgloss.Color, priority int) {
	row, col, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
	if priority >= c.priority[row][col] {
		c.priority[row][col] = priority
		c.color[row][col] = color
	}
}

// Unset clears a dot.
func (c *Canvas) Unset(x, y int) {
	row, col, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] &^= rune(pixelMap[y%4][x%2])
	if c.Grid[row][col] < blank {
		c.Grid[row][col] = blank
	}
}

// Mark replaces a whole cell with a glyph, used for event markers.
func (c *Canvas) Mark(x, y int, glyph rune, color lipgloss.Color, priority int) {
	row, col, ok := c.cell(x, y)
	if !ok || priority < c.priority[row][col] {
		return
	}
	c.overlay[row][col] = glyph
	c.priority[row][col] = priority
	c.color[row][col] = color
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
			c.color[i][j] = ""
			c.priority[i][j] = 0
			c.overlay[i][j] = 0
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Disc fills a circle of radius r dots centred on (cx, cy).
func (c *Canvas) Disc(cx, cy, r int, color lipgloss.Color, priority int) {
	if r <= 0 {
		c.Plot(cx, cy, color, priority)
		return
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.Plot(cx+dx, cy+dy, color, priority)
			}
		}
	}
}

// String renders the raw braille grid without color.
func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.Grid {
		for j, r := range row {
			if g := c.overlay[i][j]; g != 0 {
				r = g
			}
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Render is String with each cell styled by its color. Runs of one color
// share a single style call.
func (c *Canvas) Render() string {
	var b strings.Builder
	for i, row := range c.Grid {
		var run strings.Builder
		var runColor lipgloss.Color
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(runColor).Render(run.String()))
			}
			run.Reset()
		}
		for j, r := range row {
			if g := c.overlay[i][j]; g != 0 {
				r = g
			}
			if col := c.color[i][j]; col != runColor {
				flush()
				runColor = col
			}
			run.WriteRune(r)
		}
		flush()
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
