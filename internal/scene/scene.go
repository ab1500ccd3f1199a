// Package scene abstracts the rendering backend behind resource handles.
//
// The pipeline decides what geometry exists (track lines, heat-map point
// batches) and hands positions and colors to an Allocator; what the backend
// does with them (terminal cells, GPU buffers) is its own business. Every
// allocated resource must be disposed exactly once before it is dropped,
// so repeated load/clear cycles cannot accumulate backend state. The
// Registry tracks ownership and guarantees disposal on clear.
package scene

import (
	"fmt"
	"sync"
)

// Vec3 is a point in scene coordinates.
type Vec3 struct {
	X, Y, Z float64
}

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb" (for terminal truecolor styling).
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Lerp interpolates between two colors linearly in RGB space.
// frac is clamped to [0, 1].
func Lerp(a, b RGB, frac float64) RGB {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return RGB{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*frac),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*frac),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*frac),
	}
}

// Resource is an opaque handle to backend geometry. Dispose releases it;
// disposing twice is a backend bug the Registry prevents.
type Resource interface {
	Dispose()
}

// Visibility is implemented by resources that can be shown and hidden
// without reallocating (playback toggles track lines every tick).
type Visibility interface {
	SetVisible(visible bool)
}

// Allocator creates backend geometry.
type Allocator interface {
	// Line allocates a polyline through points in a single color.
	Line(points []Vec3, color RGB) (Resource, error)

	// Points allocates a point batch with per-point colors.
	// len(colors) must equal len(points).
	Points(points []Vec3, colors []RGB) (Resource, error)
}

// Registry owns a set of live resources and guarantees their disposal.
// A nil *Registry is a valid empty registry for Track/ReleaseAll.
type Registry struct {
	mu        sync.Mutex
	resources map[Resource]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[Resource]struct{})}
}

// Track takes ownership of a resource. Nil resources are ignored so failed
// allocations can be passed through without a check at every call site.
func (r *Registry) Track(res Resource) {
	if r == nil || res == nil {
		return
	}
	r.mu.Lock()
	r.resources[res] = struct{}{}
	r.mu.Unlock()
}

// Release disposes one resource and forgets it. Releasing a resource the
// registry does not own is a no-op.
func (r *Registry) Release(res Resource) {
	if r == nil || res == nil {
		return
	}
	r.mu.Lock()
	_, owned := r.resources[res]
	delete(r.resources, res)
	r.mu.Unlock()
	if owned {
		res.Dispose()
	}
}

// ReleaseAll disposes every owned resource and empties the registry. Called
// on clear, reload, heat-map regeneration and mode switches, and on error
// paths during load.
func (r *Registry) ReleaseAll() {
	if r == nil {
		return
	}
	r.mu.Lock()
	resources := r.resources
	r.resources = make(map[Resource]struct{})
	r.mu.Unlock()
	for res := range resources {
		res.Dispose()
	}
}

// Len returns the number of live resources.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resources)
}
