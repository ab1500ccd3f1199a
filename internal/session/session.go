// Package session orchestrates the historical timelapse pipeline: fetch a
// window from the track service, normalize and smooth every track, swap the
// working set, rebuild the heat map and allocate scene geometry.
//
// All mutable viewer state hangs off one Session so a load, a clear or a
// mode switch can never leave half of the old state behind. Loads are
// serialized by a busy flag and stamped with a token; a clear invalidates
// the token so a load that was in flight when the user cleared discards its
// results instead of resurrecting stale tracks.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tracklapse/tracklapse/internal/filter"
	"github.com/tracklapse/tracklapse/internal/heatmap"
	"github.com/tracklapse/tracklapse/internal/playback"
	"github.com/tracklapse/tracklapse/internal/scene"
	"github.com/tracklapse/tracklapse/internal/store"
	"github.com/tracklapse/tracklapse/pkg/track"
	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

var (
	// ErrLoadInProgress is returned when a load starts while another is
	// still running.
	ErrLoadInProgress = errors.New("historical load already in progress")

	// ErrInsufficientData is returned when a fetch yields no track with
	// enough valid positions to draw.
	ErrInsufficientData = errors.New("not enough valid position data in window")

	// ErrLoadSuperseded is returned when a load finished after the session
	// was cleared; its results were discarded.
	ErrLoadSuperseded = errors.New("load superseded, results discarded")
)

// MinTrackPositions is the smallest track worth keeping. A single point
// cannot form a line or a time span.
const MinTrackPositions = 2

// Track line colors. Military traffic is highlighted.
var (
	colorCivilian = scene.RGB{R: 0, G: 200, B: 255}
	colorMilitary = scene.RGB{R: 255, G: 80, B: 80}
)

// Fetcher is the slice of the track service client the session needs.
// *trackapi.Client satisfies it; tests substitute a stub.
type Fetcher interface {
	BulkTimelapse(ctx context.Context, q trackapi.BulkQuery) (*trackapi.BulkResponse, error)
	AircraftTrail(ctx context.Context, icao string) (*trackapi.TrailResponse, error)
}

// Options configures a Session.
type Options struct {
	// Fetcher supplies historical data
	Fetcher Fetcher

	// Allocator creates scene geometry (nil disables geometry allocation,
	// for headless use)
	Allocator scene.Allocator

	// Normalizer converts raw positions to scene space
	Normalizer track.Normalizer

	// Smoother cleans altitude glitches
	Smoother track.Smoother

	// MilitaryLookup augments the archive's military flag (may be nil)
	MilitaryLookup filter.MilitaryLookup

	// GridSize is the heat-map cell edge length in scene units
	GridSize float64

	// SaturationCount is the heat-map full-red density
	SaturationCount int

	// Jitter bounds the cosmetic heat-point offset in scene units
	Jitter float64

	// Rand drives the heat-point jitter (nil means no jitter)
	Rand *rand.Rand

	// Status receives one-line progress messages (may be nil)
	Status func(msg string)
}

// Session owns the loaded working set and everything derived from it.
type Session struct {
	mu sync.Mutex

	opts Options

	// trackRegistry owns track geometry, heatRegistry owns heat-map
	// geometry. Separate registries let a heat-map rebuild leave the
	// track lines alone.
	trackRegistry *scene.Registry
	heatRegistry  *scene.Registry

	store *store.Store

	clock    *playback.Clock
	criteria filter.Criteria
	density  *heatmap.Density

	heatmapEnabled bool

	loading   bool
	loadToken uint64
}

// New creates an empty session.
func New(opts Options) *Session {
	if opts.GridSize <= 0 {
		opts.GridSize = heatmap.DefaultGridSize
	}
	if opts.SaturationCount <= 0 {
		opts.SaturationCount = heatmap.DefaultSaturationCount
	}
	trackReg := scene.NewRegistry()
	return &Session{
		opts:          opts,
		trackRegistry: trackReg,
		heatRegistry:  scene.NewRegistry(),
		store:         store.New(trackReg),
	}
}

// Store exposes the working set for rendering passes.
func (s *Session) Store() *store.Store { return s.store }

// Clock returns the playback clock, or nil before the first load.
func (s *Session) Clock() *playback.Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Density returns the current spatial density aggregate, or nil.
func (s *Session) Density() *heatmap.Density {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.density
}

// Criteria returns the active filter criteria.
func (s *Session) Criteria() filter.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// SetCriteria replaces the filter criteria. Visibility is re-evaluated on
// the next Tick.
func (s *Session) SetCriteria(c filter.Criteria) {
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()
}

// Loading reports whether a historical load is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LoadHistorical fetches a time window from the track service and replaces
// the working set. On any failure the prior working set is left intact.
func (s *Session) LoadHistorical(ctx context.Context, q trackapi.BulkQuery) error {
	token, err := s.beginLoad()
	if err != nil {
		return err
	}
	defer s.endLoad()

	s.status("Loading historical tracks...")

	resp, err := s.opts.Fetcher.BulkTimelapse(ctx, q)
	if err != nil {
		s.status(fmt.Sprintf("Load failed: %v", err))
		return fmt.Errorf("bulk timelapse fetch: %w", err)
	}

	tracks := s.buildTracks(resp.Tracks)
	if len(tracks) == 0 {
		s.status("No usable tracks in window")
		return ErrInsufficientData
	}

	return s.install(token, tracks)
}

// LoadAircraftTrail fetches the full stored trail for one aircraft and
// replaces the working set with that single track.
func (s *Session) LoadAircraftTrail(ctx context.Context, icao string) error {
	token, err := s.beginLoad()
	if err != nil {
		return err
	}
	defer s.endLoad()

	id := track.CanonicalID(icao)
	s.status(fmt.Sprintf("Loading trail for %s...", id))

	resp, err := s.opts.Fetcher.AircraftTrail(ctx, id)
	if err != nil {
		s.status(fmt.Sprintf("Trail load failed: %v", err))
		return fmt.Errorf("aircraft trail fetch: %w", err)
	}

	t := s.buildTrack(id, resp.IsMilitary, track.Metadata{
		Callsign:     resp.Flight,
		Registration: resp.Registration,
		TypeCode:     resp.AircraftType,
	}, resp.Positions)
	if t == nil {
		s.status(fmt.Sprintf("Not enough valid positions for %s", id))
		return ErrInsufficientData
	}

	return s.install(token, []*track.Track{t})
}

// ClearHistorical drops the working set and every derived resource. An
// in-flight load is invalidated: its results will be discarded when it
// completes.
func (s *Session) ClearHistorical() {
	s.mu.Lock()
	s.loadToken++
	s.clock = nil
	s.density = nil
	s.mu.Unlock()

	s.store.Clear()
	s.heatRegistry.ReleaseAll()
	s.status("Historical tracks cleared")
}

// HeatmapEnabled reports whether the density overlay is on.
func (s *Session) HeatmapEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatmapEnabled
}

// SetHeatmapEnabled toggles the density overlay. Turning it on builds the
// geometry; turning it off releases it. The density aggregate itself is
// kept either way so cell counts stay queryable.
func (s *Session) SetHeatmapEnabled(enabled bool) error {
	s.mu.Lock()
	s.heatmapEnabled = enabled
	s.mu.Unlock()

	if !enabled {
		s.heatRegistry.ReleaseAll()
		return nil
	}
	return s.RegenerateHeatmap()
}

// RegenerateHeatmap rebuilds the density aggregate and, when the overlay is
// enabled, replaces the heat-point geometry. Prior heat geometry is always
// released first so toggles and reloads cannot leak point batches.
func (s *Session) RegenerateHeatmap() error {
	tracks := s.store.Tracks()

	d := heatmap.Build(tracks, s.opts.GridSize)

	s.mu.Lock()
	s.density = d
	enabled := s.heatmapEnabled
	s.mu.Unlock()

	s.heatRegistry.ReleaseAll()
	if !enabled || s.opts.Allocator == nil {
		return nil
	}

	batch := heatmap.BuildBatch(tracks, d, s.opts.SaturationCount, s.opts.Jitter, s.opts.Rand)
	if len(batch.Positions) == 0 {
		return nil
	}
	res, err := s.opts.Allocator.Points(batch.Positions, batch.Colors)
	if err != nil {
		return fmt.Errorf("allocate heat-map points: %w", err)
	}
	s.heatRegistry.Track(res)
	return nil
}

// Tick advances playback and re-evaluates per-track visibility. Safe to
// call before the first load (no clock means nothing to do).
func (s *Session) Tick(wallDeltaSeconds float64) {
	s.mu.Lock()
	clock := s.clock
	criteria := s.criteria
	s.mu.Unlock()
	if clock == nil {
		return
	}

	clock.Advance(wallDeltaSeconds)

	s.store.ForEach(func(st *store.TrackState) {
		visible := filter.Visible(st.Track, criteria, s.opts.MilitaryLookup)
		if visible {
			first, ok := st.Track.FirstTimestampMs()
			if !ok {
				visible = false
			} else {
				last, _ := st.Track.LastTimestampMs()
				visible = clock.TrackVisible(first, last)
			}
		}
		st.Visible = visible
		if v, ok := st.Line.(scene.Visibility); ok {
			v.SetVisible(visible)
		}
		if v, ok := st.Marker.(scene.Visibility); ok {
			v.SetVisible(visible)
		}
	})
}

// beginLoad takes the busy flag and returns the token this load must
// present when installing its results.
func (s *Session) beginLoad() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return 0, ErrLoadInProgress
	}
	s.loading = true
	s.loadToken++
	return s.loadToken, nil
}

func (s *Session) endLoad() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// buildTracks runs the normalize/smooth pipeline over a bulk payload.
// Tracks without enough valid positions are dropped, never padded.
func (s *Session) buildTracks(bulk []trackapi.BulkTrack) []*track.Track {
	out := make([]*track.Track, 0, len(bulk))
	for _, bt := range bulk {
		t := s.buildTrack(bt.ID(), bt.IsMilitary, track.Metadata{
			Callsign:     bt.Flight,
			Registration: bt.Registration,
			TypeCode:     bt.AircraftType,
		}, bt.Positions)
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) buildTrack(id string, military bool, meta track.Metadata, raws []track.RawPosition) *track.Track {
	if id == "" {
		return nil
	}
	positions := s.opts.Normalizer.NormalizeAll(raws, timeNow())
	if len(positions) < MinTrackPositions {
		return nil
	}
	positions = s.opts.Smoother.Smooth(positions)
	return &track.Track{
		ID:         id,
		Positions:  positions,
		IsMilitary: military,
		Metadata:   meta,
	}
}

// install swaps the new working set in, unless the session was cleared
// while the load was in flight.
func (s *Session) install(token uint64, tracks []*track.Track) error {
	s.mu.Lock()
	if token != s.loadToken {
		s.mu.Unlock()
		s.status("Load superseded, discarding results")
		return ErrLoadSuperseded
	}
	s.mu.Unlock()

	// Validate the playback window on the candidate tracks before touching
	// the store, so a bad window can never destroy the prior working set.
	startMs, endMs, ok := timeBounds(tracks)
	if !ok {
		// Every track passed the position minimum, so bounds must exist.
		return ErrInsufficientData
	}
	clock, err := playback.NewClock(startMs, endMs)
	if err != nil {
		// Every sample shares one timestamp (the capture-time fallback
		// collapses a whole fetch onto one instant). The tracks are still
		// drawable; install them with playback inert.
		s.status(fmt.Sprintf("Playback unavailable: %v", err))
		clock = nil
	} else {
		clock.Play()
	}

	s.store.ReplaceAll(tracks)

	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()

	if err := s.allocateTrackGeometry(); err != nil {
		return err
	}
	if err := s.RegenerateHeatmap(); err != nil {
		return err
	}

	total := 0
	for _, t := range tracks {
		total += len(t.Positions)
	}
	s.status(fmt.Sprintf("Loaded %d tracks, %d positions", len(tracks), total))
	return nil
}

// timeBounds returns the min/max sample timestamp across a track slice.
func timeBounds(tracks []*track.Track) (startMs, endMs int64, ok bool) {
	for _, t := range tracks {
		first, valid := t.FirstTimestampMs()
		if !valid {
			continue
		}
		last, _ := t.LastTimestampMs()
		if !ok || first < startMs {
			startMs = first
		}
		if !ok || last > endMs {
			endMs = last
		}
		ok = true
	}
	return startMs, endMs, ok
}

// allocateTrackGeometry creates one polyline per loaded track. The store's
// registry owns the handles, so the next ReplaceAll or Clear disposes them.
func (s *Session) allocateTrackGeometry() error {
	if s.opts.Allocator == nil {
		return nil
	}
	var firstErr error
	s.store.ForEach(func(st *store.TrackState) {
		points := make([]scene.Vec3, len(st.Track.Positions))
		for i, p := range st.Track.Positions {
			points[i] = scene.Vec3{X: p.X, Y: p.Y, Z: p.Z}
		}
		color := colorCivilian
		if st.Track.IsMilitary {
			color = colorMilitary
		}
		res, err := s.opts.Allocator.Line(points, color)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("allocate track line %s: %w", st.Track.ID, err)
			}
			return
		}
		s.trackRegistry.Track(res)
		st.Line = res
		st.Visible = true
	})
	return firstErr
}

// timeNow is replaced in tests for deterministic timestamp fallbacks.
var timeNow = time.Now

func (s *Session) status(msg string) {
	if s.opts.Status != nil {
		s.opts.Status(msg)
	}
}
