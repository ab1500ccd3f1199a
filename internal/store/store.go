// Package store holds the working set of loaded historical tracks and the
// per-track render state derived from them.
//
// At most one working set is live at a time: ReplaceAll swaps the whole set
// atomically and invalidates everything derived from the old one, so
// consumers never observe a half-populated load. Guarding against two loads
// running at once is the caller's job (the session holds the busy flag);
// the store only guarantees that whichever swap happens is all-or-nothing.
package store

import (
	"sync"

	"github.com/tracklapse/tracklapse/internal/scene"
	"github.com/tracklapse/tracklapse/pkg/track"
)

// TrackState is one track plus its derived render state. Geometry handles
// are opaque; the store disposes them through its registry when the track
// leaves the working set.
type TrackState struct {
	// Track is the immutable loaded track
	Track *track.Track

	// Visible is the playback/filter verdict, re-evaluated every tick
	Visible bool

	// Line is the track polyline geometry (nil until allocated)
	Line scene.Resource

	// Marker is the current-position marker geometry (nil until allocated)
	Marker scene.Resource
}

// Store owns the historical track working set.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*TrackState
	order    []string
	registry *scene.Registry
}

// New creates an empty store. Geometry attached to tracks is disposed
// through the given registry on replace/clear.
func New(registry *scene.Registry) *Store {
	return &Store{
		byID:     make(map[string]*TrackState),
		registry: registry,
	}
}

// ReplaceAll atomically swaps the working set. All resources owned by the
// previous set are released first, so a reload never holds two generations
// of geometry at once. Duplicate ids keep the first occurrence.
func (s *Store) ReplaceAll(tracks []*track.Track) {
	byID := make(map[string]*TrackState, len(tracks))
	order := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := byID[t.ID]; dup {
			continue
		}
		byID[t.ID] = &TrackState{Track: t}
		order = append(order, t.ID)
	}

	s.mu.Lock()
	s.byID = byID
	s.order = order
	s.mu.Unlock()

	// Prior geometry belongs to the old generation; release it outside the
	// lock (backend Dispose may be slow).
	s.registry.ReleaseAll()
}

// Clear releases every track and all associated render resources.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byID = make(map[string]*TrackState)
	s.order = nil
	s.mu.Unlock()

	s.registry.ReleaseAll()
}

// Get returns the state for one aircraft id.
func (s *Store) Get(id string) (*TrackState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	return st, ok
}

// ForEach visits every track in load order.
func (s *Store) ForEach(fn func(*TrackState)) {
	s.mu.RLock()
	states := make([]*TrackState, 0, len(s.order))
	for _, id := range s.order {
		states = append(states, s.byID[id])
	}
	s.mu.RUnlock()

	for _, st := range states {
		fn(st)
	}
}

// Tracks returns the tracks in load order (for aggregation passes).
func (s *Store) Tracks() []*track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*track.Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Track)
	}
	return out
}

// Len returns the number of loaded tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

