// Package heatmap computes the flight-corridor density grid and the colors
// derived from it.
//
// Density is aircraft identity per cell, not sample count: an aircraft
// circling inside one cell for an hour counts once, the same as an aircraft
// passing straight through. The grid is rebuilt in full on every call; there
// is no incremental update.
package heatmap

import (
	"math"
	"math/rand"

	"github.com/tracklapse/tracklapse/internal/scene"
	"github.com/tracklapse/tracklapse/pkg/track"
)

// DefaultGridSize is the cell edge length in scene units.
const DefaultGridSize = 10.0

// DefaultSaturationCount is where the top band saturates to full red.
const DefaultSaturationCount = 40

// CellKey addresses one grid cell by integer coordinates.
type CellKey struct {
	GX, GY, GZ int
}

// KeyFor buckets a scene position by floor division on all three axes.
func KeyFor(x, y, z, gridSize float64) CellKey {
	return CellKey{
		GX: int(math.Floor(x / gridSize)),
		GY: int(math.Floor(y / gridSize)),
		GZ: int(math.Floor(z / gridSize)),
	}
}

// Density is the aggregated grid: distinct aircraft ids per cell.
type Density struct {
	gridSize float64
	cells    map[CellKey]map[string]struct{}
}

// Build aggregates every position of every track into the grid. O(total
// positions); the result depends only on the inputs, not iteration order.
func Build(tracks []*track.Track, gridSize float64) *Density {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	d := &Density{
		gridSize: gridSize,
		cells:    make(map[CellKey]map[string]struct{}),
	}
	for _, t := range tracks {
		for _, p := range t.Positions {
			key := KeyFor(p.X, p.Y, p.Z, gridSize)
			cell, ok := d.cells[key]
			if !ok {
				cell = make(map[string]struct{})
				d.cells[key] = cell
			}
			cell[t.ID] = struct{}{}
		}
	}
	return d
}

// GridSize returns the cell edge length the grid was built with.
func (d *Density) GridSize() float64 {
	return d.gridSize
}

// Count returns the number of distinct aircraft observed in a cell.
func (d *Density) Count(key CellKey) int {
	return len(d.cells[key])
}

// CountAt buckets a scene position and returns its cell's count.
func (d *Density) CountAt(x, y, z float64) int {
	return d.Count(KeyFor(x, y, z, d.gridSize))
}

// Cells returns the number of occupied cells.
func (d *Density) Cells() int {
	return len(d.cells)
}

// Band endpoints. The banding is deliberately nonlinear: band width grows
// with density so extreme congestion stays visually distinct from merely
// busy airspace.
var (
	colorBlueDim = scene.RGB{R: 0, G: 0, B: 110}
	colorBlue    = scene.RGB{R: 0, G: 0, B: 255}
	colorGreen   = scene.RGB{R: 0, G: 255, B: 0}
	colorYellow  = scene.RGB{R: 255, G: 255, B: 0}
	colorRed     = scene.RGB{R: 255, G: 0, B: 0}
)

// ColorForCount maps a cell's distinct-aircraft count to a heat color.
// Returns false for counts below 2: a cell only one aircraft ever crossed
// is not heat-map-worthy and its samples are excluded entirely.
//
// Band boundaries: [2,4) within blue, [4,8) blue to green, [8,15) green to
// yellow, 15+ yellow to red saturating at cap. Within a band the fraction is
// (n - bandMin) / bandWidth, linear in RGB.
func ColorForCount(n, saturation int) (scene.RGB, bool) {
	if saturation <= 15 {
		saturation = DefaultSaturationCount
	}
	switch {
	case n < 2:
		return scene.RGB{}, false
	case n < 4:
		return scene.Lerp(colorBlueDim, colorBlue, float64(n-2)/2.0), true
	case n < 8:
		return scene.Lerp(colorBlue, colorGreen, float64(n-4)/4.0), true
	case n < 15:
		return scene.Lerp(colorGreen, colorYellow, float64(n-8)/7.0), true
	default:
		return scene.Lerp(colorYellow, colorRed, float64(n-15)/float64(saturation-15)), true
	}
}

// SampleStride is how many positions to skip between heat-map samples:
// max(3, len/50). Long tracks contribute at most ~17 points, short tracks
// keep enough to preserve the path shape.
func SampleStride(trackLength int) int {
	stride := trackLength / 50
	if stride < 3 {
		stride = 3
	}
	return stride
}

// Batch is allocator-ready heat-map geometry.
type Batch struct {
	Positions []scene.Vec3
	Colors    []scene.RGB
}

// BuildBatch samples every track at its stride and colors each sample by its
// cell's density. Sampled points get a small random positional jitter purely
// to de-clump overlapping corridors; bucketing always uses the unjittered
// position, so jitter can never move a point across a band boundary.
func BuildBatch(tracks []*track.Track, d *Density, saturationCap int, jitter float64, rng *rand.Rand) Batch {
	var batch Batch
	for _, t := range tracks {
		stride := SampleStride(len(t.Positions))
		for i := 0; i < len(t.Positions); i += stride {
			p := t.Positions[i]
			n := d.CountAt(p.X, p.Y, p.Z)
			color, ok := ColorForCount(n, saturationCap)
			if !ok {
				continue
			}
			batch.Positions = append(batch.Positions, scene.Vec3{
				X: p.X + jitterOffset(rng, jitter),
				Y: p.Y + jitterOffset(rng, jitter),
				Z: p.Z + jitterOffset(rng, jitter),
			})
			batch.Colors = append(batch.Colors, color)
		}
	}
	return batch
}

func jitterOffset(rng *rand.Rand, bound float64) float64 {
	if rng == nil || bound <= 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * bound
}
