package collector

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tracklapse/tracklapse/internal/db"
	"github.com/tracklapse/tracklapse/pkg/military"
	"github.com/tracklapse/tracklapse/pkg/track"
)

const (
	// maxConsecutiveErrors before the collector backs off
	maxConsecutiveErrors = 10

	// errorPause is how long the collector sleeps after repeated failures
	errorPause = 60 * time.Second

	// militaryRefreshInterval between military database refreshes
	militaryRefreshInterval = 24 * time.Hour

	// archiveWriteRetries for transient connection failures on archive writes
	archiveWriteRetries = 2
)

// Archive is the slice of the track repository the collector writes to.
type Archive interface {
	InsertPositions(ctx context.Context, records []db.PositionRecord) error
	UpsertMetadata(ctx context.Context, records []db.MetadataRecord) error
}

// Collector polls the feeder on an interval and stores what it sees.
type Collector struct {
	archive  Archive
	feeder   *FeederClient
	military *military.Database
	interval time.Duration

	mu      sync.RWMutex
	latest  *FeederSnapshot
	running bool

	// onSnapshot, when set, receives every successful poll (live broadcast)
	onSnapshot func(*FeederSnapshot)
}

// New creates a collector. interval is the feeder poll period.
func New(archive Archive, feeder *FeederClient, mil *military.Database, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Collector{
		archive:  archive,
		feeder:   feeder,
		military: mil,
		interval: interval,
	}
}

// OnSnapshot registers a callback invoked after every successful poll.
// Must be called before Run.
func (c *Collector) OnSnapshot(fn func(*FeederSnapshot)) {
	c.onSnapshot = fn
}

// Latest returns the most recent feeder snapshot, or nil before the first
// successful poll.
func (c *Collector) Latest() *FeederSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Running reports whether the collection loop is active.
func (c *Collector) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Run polls the feeder until the context is cancelled. Repeated failures
// trigger a 60 second pause rather than a tight error loop.
func (c *Collector) Run(ctx context.Context) {
	log.Printf("Starting collection loop (interval: %v)", c.interval)

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	// Initial military database load; failure degrades, never blocks.
	if c.military != nil {
		if err := c.military.Load(ctx); err != nil {
			log.Printf("Military database load failed: %v", err)
		} else {
			log.Printf("Military database loaded: %d aircraft", c.military.Size())
		}
	}
	lastMilitaryRefresh := time.Now()

	consecutiveErrors := 0
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if c.military != nil && time.Since(lastMilitaryRefresh) > militaryRefreshInterval {
			log.Println("24 hours elapsed, refreshing military database...")
			if err := c.military.Load(ctx); err != nil {
				log.Printf("Military database refresh failed: %v", err)
			}
			lastMilitaryRefresh = time.Now()
		}

		if err := c.poll(ctx); err != nil {
			consecutiveErrors++
			log.Printf("Collection error (%d/%d): %v", consecutiveErrors, maxConsecutiveErrors, err)
			if consecutiveErrors >= maxConsecutiveErrors {
				log.Printf("Too many consecutive errors, pausing for %v", errorPause)
				select {
				case <-time.After(errorPause):
				case <-ctx.Done():
					return
				}
				consecutiveErrors = 0
			}
		} else {
			consecutiveErrors = 0
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Println("Collector stopping")
			return
		}
	}
}

// poll fetches one snapshot and stores it.
func (c *Collector) poll(ctx context.Context) error {
	snapshot, err := c.feeder.Fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()

	now := time.Now().UTC()
	positions, metadata := c.buildRecords(snapshot, now)

	if len(positions) > 0 {
		err := db.WithRetry(func() error {
			return c.archive.InsertPositions(ctx, positions)
		}, archiveWriteRetries)
		if err != nil {
			return err
		}
	}
	if len(metadata) > 0 {
		err := db.WithRetry(func() error {
			return c.archive.UpsertMetadata(ctx, metadata)
		}, archiveWriteRetries)
		if err != nil {
			return err
		}
	}
	if len(positions) > 0 || len(metadata) > 0 {
		log.Printf("Stored %d positions, updated %d metadata records", len(positions), len(metadata))
	}

	if c.onSnapshot != nil {
		c.onSnapshot(snapshot)
	}
	return nil
}

// buildRecords converts a snapshot into archive rows. Aircraft without a
// position are skipped; IDs are stored lowercase; "ground" altitudes become
// zero feet. Metadata rows are only emitted when the feeder supplied
// airframe info worth remembering.
func (c *Collector) buildRecords(snapshot *FeederSnapshot, now time.Time) ([]db.PositionRecord, []db.MetadataRecord) {
	var positions []db.PositionRecord
	var metadata []db.MetadataRecord

	for _, ac := range snapshot.Aircraft {
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		icao := track.CanonicalID(ac.Hex)
		if icao == "" {
			continue
		}

		rec := db.PositionRecord{
			Time:        now,
			ICAO:        icao,
			Lat:         *ac.Lat,
			Lon:         *ac.Lon,
			GroundSpeed: nullFloat(ac.Gs),
			Track:       nullFloat(ac.Track),
			RSSI:        nullFloat(ac.RSSI),
			Seen:        nullFloat(ac.Seen),
			Flight:      nullTrimmed(ac.Flight),
			Squawk:      nullTrimmed(ac.Squawk),
			Emergency:   nullTrimmed(ac.Emergency),
			Category:    nullTrimmed(ac.Category),
		}
		if alt, ok := parseBaroAltitude(ac.AltBaro); ok {
			rec.AltBaro = sql.NullInt64{Int64: alt, Valid: true}
		}
		rec.AltGeom = nullFloatToInt(ac.AltGeom)
		rec.BaroRate = nullFloatToInt(ac.BaroRate)
		rec.NavAltitudeMCP = nullFloatToInt(ac.NavAltitudeMCP)
		if ac.Messages != nil {
			rec.Messages = sql.NullInt64{Int64: *ac.Messages, Valid: true}
		}
		positions = append(positions, rec)

		if ac.Registration != "" || ac.Type != "" || ac.Category != "" {
			metadata = append(metadata, db.MetadataRecord{
				ICAO:            icao,
				Registration:    nullTrimmed(ac.Registration),
				AircraftType:    nullTrimmed(ac.Type),
				TypeDescription: nullTrimmed(ac.Description),
				OwnerOperator:   nullTrimmed(ac.OwnerOperator),
				Year:            nullYear(ac.Year),
				IsMilitary:      c.isMilitary(ac.Hex),
			})
		}
	}

	return positions, metadata
}

func (c *Collector) isMilitary(hex string) bool {
	if c.military == nil {
		return false
	}
	return c.military.IsMilitary(hex)
}

// parseBaroAltitude accepts a float or the string "ground" (zero feet).
func parseBaroAltitude(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case float64:
		return int64(v), true
	case string:
		if v == "ground" {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullFloatToInt(v *float64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTrimmed(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullYear parses the feeder's year string, which is often empty or "0000".
func nullYear(s string) sql.NullInt64 {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(year), Valid: true}
}
