// Package config loads the JSON configuration shared by the track service
// and the viewer clients. Missing file means defaults; sensitive values can
// be overridden from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Feeder       FeederConfig       `json:"feeder"`
	TrackService TrackServiceConfig `json:"track_service"`
	Military     MilitaryConfig     `json:"military"`
	Viewer       ViewerConfig       `json:"viewer"`
	Observer     ObserverConfig     `json:"observer"`
}

// ServerConfig contains the track service HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8000)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// FeederConfig points the collector at a readsb/ultrafeeder instance.
type FeederConfig struct {
	// URL is the feeder base URL; aircraft data is read from
	// {url}/data/aircraft.json
	URL string `json:"url"`

	// PollIntervalSeconds is how often the collector samples the feeder
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// TimeoutSeconds bounds each feeder request
	TimeoutSeconds int `json:"timeout_seconds"`
}

// TrackServiceConfig is the client-side view of the track service.
type TrackServiceConfig struct {
	// BaseURL is the track service address (e.g., "http://tracker.lan:8000")
	BaseURL string `json:"base_url"`

	// MaxTracks caps bulk timelapse requests
	MaxTracks int `json:"max_tracks"`

	// DefaultWindowHours is the historical window loaded when none is given
	DefaultWindowHours int `json:"default_window_hours"`
}

// MilitaryConfig selects the military aircraft database source.
type MilitaryConfig struct {
	// DatabaseURL overrides the tar1090-db upstream ("" = default)
	DatabaseURL string `json:"database_url"`
}

// ViewerConfig tunes the timelapse pipeline and scene scale.
type ViewerConfig struct {
	// UnitsPerNauticalMile sets the horizontal scene scale
	UnitsPerNauticalMile float64 `json:"units_per_nm"`

	// AltitudeScale converts feet to scene Y units
	AltitudeScale float64 `json:"altitude_scale"`

	// MinRenderAltitude floors scene Y so ground traffic stays visible
	MinRenderAltitude float64 `json:"min_render_altitude"`

	// OutlierThresholdFeet is the altitude smoother glitch threshold
	OutlierThresholdFeet float64 `json:"outlier_threshold_feet"`

	// LowAltitudeFloorFeet is the smoother's aggressive-correction floor
	LowAltitudeFloorFeet float64 `json:"low_altitude_floor_feet"`

	// GridSize is the heat-map cell edge length in scene units
	GridSize float64 `json:"grid_size"`

	// SaturationCount is where the heat map saturates to full red
	SaturationCount int `json:"saturation_count"`

	// JitterUnits bounds the cosmetic heat-point jitter
	JitterUnits float64 `json:"jitter_units"`

	// FadeAfterSeconds is the playback fade window; -1 means never fade
	FadeAfterSeconds int `json:"fade_after_seconds"`
}

// ObserverConfig is the home location the scene is centered on.
type ObserverConfig struct {
	// Name is a friendly label for the site
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Elevation in meters MSL
	Elevation float64 `json:"elevation"`
}

// Load reads the configuration from a JSON file.
// If the file doesn't exist, returns the default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "adsb_tracks",
			Username:     "adsb",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 2,
		},
		Feeder: FeederConfig{
			URL:                 "http://ultrafeeder",
			PollIntervalSeconds: 5,
			TimeoutSeconds:      10,
		},
		TrackService: TrackServiceConfig{
			BaseURL:            "http://localhost:8000",
			MaxTracks:          500,
			DefaultWindowHours: 24,
		},
		Viewer: ViewerConfig{
			UnitsPerNauticalMile: 1.0,
			AltitudeScale:        0.01,
			MinRenderAltitude:    1.0,
			OutlierThresholdFeet: 2500,
			LowAltitudeFloorFeet: 5000,
			GridSize:             10.0,
			SaturationCount:      40,
			JitterUnits:          0.5,
			FadeAfterSeconds:     -1,
		},
		Observer: ObserverConfig{
			Name:      "Home",
			Latitude:  0.0,
			Longitude: 0.0,
			Elevation: 0.0,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		return fmt.Errorf("invalid observer latitude: %v", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		return fmt.Errorf("invalid observer longitude: %v", c.Observer.Longitude)
	}
	if c.Feeder.PollIntervalSeconds < 1 {
		return fmt.Errorf("invalid feeder poll interval: %d", c.Feeder.PollIntervalSeconds)
	}
	if c.Viewer.GridSize <= 0 {
		return fmt.Errorf("invalid heat-map grid size: %v", c.Viewer.GridSize)
	}
	if c.Viewer.AltitudeScale <= 0 {
		return fmt.Errorf("invalid altitude scale: %v", c.Viewer.AltitudeScale)
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides.
// This keeps sensitive data like passwords out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("TRACKLAPSE_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("TRACKLAPSE_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if feederURL := os.Getenv("TRACKLAPSE_FEEDER_URL"); feederURL != "" {
		c.Feeder.URL = feederURL
	}
	if serviceURL := os.Getenv("TRACKLAPSE_SERVICE_URL"); serviceURL != "" {
		c.TrackService.BaseURL = serviceURL
	}
}
