package main

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tracklapse/tracklapse/internal/scene"
)

// geometryKind separates track lines from heat-map point batches so the
// rasterizer can draw heat underneath the lines.
type geometryKind int

const (
	kindLine geometryKind = iota
	kindPoints
)

// geometry is one allocated resource on the canvas. It satisfies
// scene.Resource and scene.Visibility; Dispose unregisters it from the
// owning canvas.
type geometry struct {
	canvas *canvas
	id     int
	kind   geometryKind

	mu      sync.Mutex
	points  []scene.Vec3
	colors  []scene.RGB
	visible bool
}

func (g *geometry) Dispose() {
	g.canvas.remove(g.id)
}

func (g *geometry) SetVisible(visible bool) {
	g.mu.Lock()
	g.visible = visible
	g.mu.Unlock()
}

// canvas is the terminal rendering backend. It holds every live geometry
// resource and rasterizes them into a styled cell grid on demand. The
// session allocates and disposes through the scene.Allocator interface; the
// view loop only ever calls Render.
type canvas struct {
	mu     sync.Mutex
	nextID int
	order  []int
	byID   map[int]*geometry
}

func newCanvas() *canvas {
	return &canvas{byID: make(map[int]*geometry)}
}

// Line allocates a track polyline. New geometry starts hidden; playback
// decides when it appears.
func (c *canvas) Line(points []scene.Vec3, color scene.RGB) (scene.Resource, error) {
	colors := []scene.RGB{color}
	return c.add(kindLine, points, colors), nil
}

// Points allocates a heat-map point batch, visible immediately.
func (c *canvas) Points(points []scene.Vec3, colors []scene.RGB) (scene.Resource, error) {
	g := c.add(kindPoints, points, colors)
	g.visible = true
	return g, nil
}

func (c *canvas) add(kind geometryKind, points []scene.Vec3, colors []scene.RGB) *geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	g := &geometry{
		canvas: c,
		id:     c.nextID,
		kind:   kind,
		points: points,
		colors: colors,
	}
	c.byID[g.id] = g
	c.order = append(c.order, g.id)
	return g
}

func (c *canvas) remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	for i, gid := range c.order {
		if gid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live resources.
func (c *canvas) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// snapshot copies the live geometry list so rasterization never holds the
// canvas lock while styling cells.
func (c *canvas) snapshot() []*geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*geometry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// cell is one rasterized screen cell.
type cell struct {
	ch    rune
	color scene.RGB
	set   bool
}

// viewport maps scene coordinates onto the cell grid. Terminal cells are
// roughly twice as tall as wide, so vertical scale is halved to keep
// geographic shapes round.
type viewport struct {
	// CenterX/CenterZ is the scene point at the middle of the grid
	CenterX float64
	CenterZ float64

	// Zoom is cells per scene unit horizontally
	Zoom float64

	Cols int
	Rows int
}

// cellFor projects a scene point to grid coordinates. The second return is
// false when the point falls outside the grid.
func (v viewport) cellFor(p scene.Vec3) (col, row int, ok bool) {
	col = v.Cols/2 + int(math.Round((p.X-v.CenterX)*v.Zoom))
	row = v.Rows/2 + int(math.Round((p.Z-v.CenterZ)*v.Zoom/2))
	if col < 0 || col >= v.Cols || row < 0 || row >= v.Rows {
		return 0, 0, false
	}
	return col, row, true
}

const (
	heatRune   = '▒'
	trackRune  = '•'
	markerRune = '◆'
)

// marker is a transient per-frame overlay: the interpolated current
// position of one aircraft at the playback instant. Markers are recomputed
// every frame, so they bypass the resource lifecycle entirely.
type marker struct {
	Pos   scene.Vec3
	Color scene.RGB
}

// Render rasterizes every visible geometry into a styled string grid. Heat
// points are drawn first, track lines over them, markers on top.
func (c *canvas) Render(v viewport, markers []marker) string {
	if v.Cols <= 0 || v.Rows <= 0 {
		return ""
	}
	grid := make([][]cell, v.Rows)
	for i := range grid {
		grid[i] = make([]cell, v.Cols)
	}

	geoms := c.snapshot()
	for _, g := range geoms {
		if g.kind == kindPoints {
			rasterPoints(grid, v, g)
		}
	}
	for _, g := range geoms {
		if g.kind == kindLine {
			rasterLine(grid, v, g)
		}
	}
	for _, m := range markers {
		if col, row, ok := v.cellFor(m.Pos); ok {
			grid[row][col] = cell{ch: markerRune, color: m.Color, set: true}
		}
	}

	var b strings.Builder
	for row := 0; row < v.Rows; row++ {
		for col := 0; col < v.Cols; col++ {
			cl := grid[row][col]
			if !cl.set {
				b.WriteByte(' ')
				continue
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(cl.color.Hex()))
			b.WriteString(style.Render(string(cl.ch)))
		}
		if row < v.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func rasterPoints(grid [][]cell, v viewport, g *geometry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.visible {
		return
	}
	for i, p := range g.points {
		col, row, ok := v.cellFor(p)
		if !ok {
			continue
		}
		color := scene.RGB{}
		if i < len(g.colors) {
			color = g.colors[i]
		}
		grid[row][col] = cell{ch: heatRune, color: color, set: true}
	}
}

func rasterLine(grid [][]cell, v viewport, g *geometry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.visible || len(g.points) == 0 {
		return
	}
	color := scene.RGB{}
	if len(g.colors) > 0 {
		color = g.colors[0]
	}
	prev := g.points[0]
	plotCell(grid, v, prev, color)
	for _, p := range g.points[1:] {
		plotSegment(grid, v, prev, p, color)
		prev = p
	}
}

// plotSegment walks a straight line between two scene points in grid space,
// stepping one cell at a time along the longer axis.
func plotSegment(grid [][]cell, v viewport, a, b scene.Vec3, color scene.RGB) {
	dx := (b.X - a.X) * v.Zoom
	dz := (b.Z - a.Z) * v.Zoom / 2
	steps := int(math.Max(math.Abs(dx), math.Abs(dz)))
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		p := scene.Vec3{
			X: a.X + (b.X-a.X)*frac,
			Z: a.Z + (b.Z-a.Z)*frac,
		}
		plotCell(grid, v, p, color)
	}
}

func plotCell(grid [][]cell, v viewport, p scene.Vec3, color scene.RGB) {
	col, row, ok := v.cellFor(p)
	if !ok {
		return
	}
	grid[row][col] = cell{ch: trackRune, color: color, set: true}
}
