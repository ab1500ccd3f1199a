package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// TrackRepository handles archive reads and writes for aircraft tracks.
type TrackRepository struct {
	db *DB
}

// NewTrackRepository creates a repository over an open archive connection.
func NewTrackRepository(db *DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// PositionRecord is one raw position sample as collected from the feeder.
type PositionRecord struct {
	Time           time.Time
	ICAO           string
	Flight         sql.NullString
	Lat            float64
	Lon            float64
	AltBaro        sql.NullInt64
	AltGeom        sql.NullInt64
	GroundSpeed    sql.NullFloat64
	Track          sql.NullFloat64
	BaroRate       sql.NullInt64
	Squawk         sql.NullString
	Emergency      sql.NullString
	Category       sql.NullString
	NavAltitudeMCP sql.NullInt64
	RSSI           sql.NullFloat64
	Messages       sql.NullInt64
	Seen           sql.NullFloat64
}

// MetadataRecord is airframe metadata worth remembering across sightings.
type MetadataRecord struct {
	ICAO            string
	Registration    sql.NullString
	AircraftType    sql.NullString
	TypeDescription sql.NullString
	OwnerOperator   sql.NullString
	Year            sql.NullInt64
	IsMilitary      bool
}

// InsertPositions batch-inserts one collector poll's worth of positions
// using the COPY protocol. An empty batch is a no-op.
func (r *TrackRepository) InsertPositions(ctx context.Context, records []PositionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("aircraft_positions",
		"time", "icao", "flight", "lat", "lon", "alt_baro", "alt_geom",
		"gs", "track", "baro_rate", "squawk", "emergency", "category",
		"nav_altitude_mcp", "rssi", "messages", "seen",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx,
			rec.Time, rec.ICAO, rec.Flight, rec.Lat, rec.Lon,
			rec.AltBaro, rec.AltGeom, rec.GroundSpeed, rec.Track,
			rec.BaroRate, rec.Squawk, rec.Emergency, rec.Category,
			rec.NavAltitudeMCP, rec.RSSI, rec.Messages, rec.Seen,
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy position: %w", err)
		}
	}

	// Flush the copy buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions: %w", err)
	}
	return nil
}

// UpsertMetadata inserts or refreshes airframe metadata. Existing values win
// over missing ones so a poll without registration data cannot erase a
// previously seen registration.
func (r *TrackRepository) UpsertMetadata(ctx context.Context, records []MetadataRecord) error {
	for _, rec := range records {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO aircraft_metadata
				(icao, registration, aircraft_type, type_description,
				 owner_operator, year, is_military, last_seen, total_sightings)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), 1)
			 ON CONFLICT (icao) DO UPDATE SET
				registration = COALESCE(EXCLUDED.registration, aircraft_metadata.registration),
				aircraft_type = COALESCE(EXCLUDED.aircraft_type, aircraft_metadata.aircraft_type),
				type_description = COALESCE(EXCLUDED.type_description, aircraft_metadata.type_description),
				owner_operator = COALESCE(EXCLUDED.owner_operator, aircraft_metadata.owner_operator),
				year = COALESCE(EXCLUDED.year, aircraft_metadata.year),
				is_military = EXCLUDED.is_military,
				last_seen = NOW(),
				total_sightings = aircraft_metadata.total_sightings + 1`,
			rec.ICAO, rec.Registration, rec.AircraftType, rec.TypeDescription,
			rec.OwnerOperator, rec.Year, rec.IsMilitary,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert metadata for %s: %w", rec.ICAO, err)
		}
	}
	return nil
}

// TrackPoint is one archived position as served by the API.
type TrackPoint struct {
	Time    time.Time
	Lat     float64
	Lon     float64
	AltBaro sql.NullInt64
	Gs      sql.NullFloat64
	Track   sql.NullFloat64
	Flight  sql.NullString
}

// trailTable picks the storage table and time column for a single-aircraft
// trail. Long windows fall back to coarser aggregates even at the default
// resolution, so a month-long trail does not return millions of rows.
func trailTable(resolution string, timeRange time.Duration) (table, timeCol string) {
	switch {
	case resolution == "5min" || timeRange > 30*24*time.Hour:
		return "aircraft_tracks_5min", "bucket"
	case resolution == "1min" || timeRange > 7*24*time.Hour:
		return "aircraft_tracks_1min", "bucket"
	default:
		return "aircraft_positions", "time"
	}
}

// bulkTable picks the storage table for the bulk timelapse query. An
// explicit "full" is honored regardless of window length.
func bulkTable(resolution string) (table, timeCol string) {
	switch resolution {
	case "full":
		return "aircraft_positions", "time"
	case "5min":
		return "aircraft_tracks_5min", "bucket"
	case "1min":
		return "aircraft_tracks_1min", "bucket"
	default:
		return "aircraft_positions", "time"
	}
}

// AircraftTrail returns the archived trail for one aircraft, newest last,
// with whatever metadata the archive has for the airframe.
func (r *TrackRepository) AircraftTrail(ctx context.Context, icao string, start, end time.Time, resolution string) ([]TrackPoint, *MetadataRecord, error) {
	table, timeCol := trailTable(resolution, end.Sub(start))

	query := fmt.Sprintf(
		`SELECT %s, lat, lon, alt_baro, gs, track, flight
		 FROM %s
		 WHERE icao = $1 AND %s BETWEEN $2 AND $3
		 ORDER BY %s`,
		timeCol, table, timeCol, timeCol,
	)

	rows, err := r.db.QueryContext(ctx, query, icao, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query trail: %w", err)
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.Time, &p.Lat, &p.Lon, &p.AltBaro, &p.Gs, &p.Track, &p.Flight); err != nil {
			return nil, nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	meta, err := r.metadataFor(ctx, icao)
	if err != nil {
		return nil, nil, err
	}
	return points, meta, nil
}

func (r *TrackRepository) metadataFor(ctx context.Context, icao string) (*MetadataRecord, error) {
	var m MetadataRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT icao, registration, aircraft_type, type_description,
			owner_operator, year, is_military
		 FROM aircraft_metadata WHERE icao = $1`,
		icao,
	).Scan(&m.ICAO, &m.Registration, &m.AircraftType, &m.TypeDescription,
		&m.OwnerOperator, &m.Year, &m.IsMilitary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	return &m, nil
}

// BulkParams selects a window for the bulk timelapse query.
type BulkParams struct {
	Start        time.Time
	End          time.Time
	Resolution   string
	MaxTracks    int
	MinAltitude  *int
	MaxAltitude  *int
	MilitaryOnly bool
}

// BulkAircraftTrack is one aircraft's positions within the window plus its
// archived metadata.
type BulkAircraftTrack struct {
	ICAO            string
	Flight          sql.NullString
	AircraftType    sql.NullString
	Registration    sql.NullString
	TypeDescription sql.NullString
	IsMilitary      bool
	Positions       []TrackPoint
}

// BulkResult is the grouped bulk timelapse payload.
type BulkResult struct {
	Tracks         []BulkAircraftTrack
	TotalPositions int
}

// bulkRow is one joined row before grouping.
type bulkRow struct {
	point           TrackPoint
	icao            string
	flight          sql.NullString
	aircraftType    sql.NullString
	registration    sql.NullString
	typeDescription sql.NullString
	isMilitary      bool
}

// buildBulkQuery assembles the ranked-aircraft query: the CTE picks the
// MaxTracks busiest aircraft in the window, the outer query returns all of
// their positions joined with metadata.
func buildBulkQuery(p BulkParams) (string, []interface{}) {
	table, timeCol := bulkTable(p.Resolution)

	filters := []string{fmt.Sprintf("%s BETWEEN $1 AND $2", timeCol)}
	args := []interface{}{p.Start, p.End}

	if p.MinAltitude != nil {
		args = append(args, *p.MinAltitude)
		filters = append(filters, fmt.Sprintf("alt_baro >= $%d", len(args)))
	}
	if p.MaxAltitude != nil {
		args = append(args, *p.MaxAltitude)
		filters = append(filters, fmt.Sprintf("alt_baro <= $%d", len(args)))
	}

	militaryJoin := ""
	militaryWhere := ""
	if p.MilitaryOnly {
		militaryJoin = "JOIN aircraft_metadata mf ON t.icao = mf.icao"
		militaryWhere = "AND mf.is_military"
	}

	where := strings.Join(filters, " AND ")
	args = append(args, p.MaxTracks)

	query := fmt.Sprintf(`
		WITH ranked_aircraft AS (
			SELECT t.icao, COUNT(*) AS position_count
			FROM %s t
			%s
			WHERE %s %s
			GROUP BY t.icao
			ORDER BY position_count DESC
			LIMIT $%d
		)
		SELECT
			p.%s AS time, p.icao, p.flight, p.lat, p.lon, p.alt_baro,
			p.gs, p.track,
			m.aircraft_type, m.registration, m.type_description,
			COALESCE(m.is_military, false) AS is_military
		FROM %s p
		JOIN ranked_aircraft r ON p.icao = r.icao
		LEFT JOIN aircraft_metadata m ON p.icao = m.icao
		WHERE %s
		ORDER BY p.icao, p.%s`,
		table, militaryJoin, where, militaryWhere, len(args),
		timeCol, table, where, timeCol,
	)

	return query, args
}

// BulkTimelapse returns all tracks in a window, grouped per aircraft and
// capped to the busiest MaxTracks aircraft.
func (r *TrackRepository) BulkTimelapse(ctx context.Context, p BulkParams) (*BulkResult, error) {
	if p.MaxTracks <= 0 {
		p.MaxTracks = 500
	}
	query, args := buildBulkQuery(p)

	sqlRows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bulk tracks: %w", err)
	}
	defer sqlRows.Close()

	var rows []bulkRow
	for sqlRows.Next() {
		var row bulkRow
		err := sqlRows.Scan(
			&row.point.Time, &row.icao, &row.flight,
			&row.point.Lat, &row.point.Lon, &row.point.AltBaro,
			&row.point.Gs, &row.point.Track,
			&row.aircraftType, &row.registration, &row.typeDescription,
			&row.isMilitary,
		)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, err
	}

	return groupTracks(rows), nil
}

// groupTracks folds joined rows into per-aircraft tracks, preserving the
// query's icao grouping and time order.
func groupTracks(rows []bulkRow) *BulkResult {
	byICAO := make(map[string]*BulkAircraftTrack)
	var order []string

	for _, row := range rows {
		t, ok := byICAO[row.icao]
		if !ok {
			t = &BulkAircraftTrack{
				ICAO:            row.icao,
				Flight:          row.flight,
				AircraftType:    row.aircraftType,
				Registration:    row.registration,
				TypeDescription: row.typeDescription,
				IsMilitary:      row.isMilitary,
			}
			byICAO[row.icao] = t
			order = append(order, row.icao)
		}
		t.Positions = append(t.Positions, row.point)
	}

	result := &BulkResult{
		Tracks:         make([]BulkAircraftTrack, 0, len(order)),
		TotalPositions: len(rows),
	}
	for _, icao := range order {
		result.Tracks = append(result.Tracks, *byICAO[icao])
	}
	return result
}

// UniqueAircraftRow summarizes one airframe's presence over a period.
type UniqueAircraftRow struct {
	ICAO            string
	Registration    sql.NullString
	AircraftType    sql.NullString
	TypeDescription sql.NullString
	OwnerOperator   sql.NullString
	Year            sql.NullInt64
	DaysSeen        int
	LastSeen        time.Time
	TotalPositions  int64
}

// UniqueAircraft lists airframes seen in the period, busiest first, capped
// at 200 rows.
func (r *TrackRepository) UniqueAircraft(ctx context.Context, start, end time.Time, minSightings int) ([]UniqueAircraftRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			m.icao, m.registration, m.aircraft_type, m.type_description,
			m.owner_operator, m.year,
			COUNT(DISTINCT DATE(p.time)) AS days_seen,
			MAX(p.time) AS last_seen,
			COUNT(*) AS total_positions
		 FROM aircraft_metadata m
		 JOIN aircraft_positions p ON m.icao = p.icao
		 WHERE p.time BETWEEN $1 AND $2
		 GROUP BY m.icao, m.registration, m.aircraft_type, m.type_description,
			m.owner_operator, m.year
		 HAVING COUNT(DISTINCT DATE(p.time)) >= $3
		 ORDER BY days_seen DESC, total_positions DESC
		 LIMIT 200`,
		start, end, minSightings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique aircraft: %w", err)
	}
	defer rows.Close()

	var out []UniqueAircraftRow
	for rows.Next() {
		var u UniqueAircraftRow
		err := rows.Scan(&u.ICAO, &u.Registration, &u.AircraftType,
			&u.TypeDescription, &u.OwnerOperator, &u.Year,
			&u.DaysSeen, &u.LastSeen, &u.TotalPositions)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Summary is archive-wide statistics for a recent period.
type Summary struct {
	UniqueAircraft int64
	TotalPositions int64
	FirstPosition  sql.NullTime
	LastPosition   sql.NullTime
	AvgAltitudeFt  sql.NullFloat64
	MaxAltitudeFt  sql.NullInt64
}

// StatsSummary returns archive statistics over the past number of days.
func (r *TrackRepository) StatsSummary(ctx context.Context, days int) (*Summary, error) {
	start := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	var s Summary
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COUNT(DISTINCT icao), COUNT(*),
			MIN(time), MAX(time),
			AVG(alt_baro), MAX(alt_baro)
		 FROM aircraft_positions
		 WHERE time >= $1 AND alt_baro IS NOT NULL`,
		start,
	).Scan(&s.UniqueAircraft, &s.TotalPositions,
		&s.FirstPosition, &s.LastPosition,
		&s.AvgAltitudeFt, &s.MaxAltitudeFt)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &s, nil
}
