// Package military identifies military aircraft by ICAO hex address using
// the Mictronics tar1090-db aircraft database. Classification is a plain
// database lookup; there is no callsign or registration pattern matching.
package military

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultDatabaseURL is the tar1090-db aircraft database
	DefaultDatabaseURL = "https://raw.githubusercontent.com/Mictronics/readsb-protobuf/dev/webapp/src/db/aircrafts.json"

	// militaryFlag marks military aircraft in the database
	militaryFlag = "10"

	// cacheValidity is how long a loaded database stays fresh
	cacheValidity = 24 * time.Hour
)

// Entry describes one military aircraft from the database.
type Entry struct {
	// Tail is the registration/tail number
	Tail string

	// Type is the ICAO type designator
	Type string

	// Description is the free-text aircraft description
	Description string
}

// Database holds the military subset of the tar1090-db aircraft database,
// keyed by uppercase ICAO hex. A failed or missing load degrades to an empty
// set: lookups return false, nothing errors at query time.
type Database struct {
	mu          sync.RWMutex
	byHex       map[string]Entry
	lastUpdated time.Time
	loading     bool

	url        string
	httpClient *http.Client
}

// New creates a database client. Pass "" for url to use the tar1090-db
// upstream.
func New(url string) *Database {
	if url == "" {
		url = DefaultDatabaseURL
	}
	return &Database{
		url: url,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Load downloads and filters the database. The cached copy is reused for 24
// hours; concurrent loads are coalesced (the second call returns immediately).
// On failure the database is left empty but usable, and the error is returned
// for logging.
func (d *Database) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.loading {
		d.mu.Unlock()
		return nil
	}
	if d.byHex != nil && time.Since(d.lastUpdated) < cacheValidity {
		d.mu.Unlock()
		return nil
	}
	d.loading = true
	d.mu.Unlock()

	byHex, err := d.download(ctx)

	d.mu.Lock()
	d.loading = false
	d.lastUpdated = time.Now().UTC()
	if err != nil {
		// Degrade to an empty set rather than retrying on every lookup.
		d.byHex = map[string]Entry{}
		d.mu.Unlock()
		return fmt.Errorf("failed to load military database: %w", err)
	}
	d.byHex = byHex
	d.mu.Unlock()
	return nil
}

// IsMilitary reports whether the ICAO hex address belongs to a military
// aircraft. Returns false when the database has not been loaded.
func (d *Database) IsMilitary(icaoHex string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.byHex == nil {
		return false
	}
	_, ok := d.byHex[strings.ToUpper(strings.TrimSpace(icaoHex))]
	return ok
}

// Lookup returns database details for a military aircraft.
func (d *Database) Lookup(icaoHex string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byHex[strings.ToUpper(strings.TrimSpace(icaoHex))]
	return e, ok
}

// Size returns the number of military aircraft loaded.
func (d *Database) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byHex)
}

// download fetches and parses the database, keeping only entries whose flag
// field marks them military. The upstream format maps hex addresses to
// [tail, type, flag, description] arrays.
func (d *Database) download(ctx context.Context) (map[string]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	var raw map[string][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse database: %w", err)
	}

	byHex := make(map[string]Entry)
	for hex, fields := range raw {
		if len(fields) < 3 {
			continue
		}
		flag, _ := fields[2].(string)
		if flag != militaryFlag {
			continue
		}
		entry := Entry{}
		if s, ok := fields[0].(string); ok {
			entry.Tail = s
		}
		if s, ok := fields[1].(string); ok {
			entry.Type = s
		}
		if len(fields) > 3 {
			if s, ok := fields[3].(string); ok {
				entry.Description = s
			}
		}
		byHex[strings.ToUpper(hex)] = entry
	}

	return byHex, nil
}
