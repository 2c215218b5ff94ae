// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
)

// Default map view, centred on the city.
const (
	DefaultCenterLat = -34.00838607138288
	DefaultCenterLng = 18.466771295682648
	DefaultMapID     = "fc59b2ef47016cea"
)

type Config struct {
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8081"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
	ContentDir string `env:"CONTENT_DIR" envDefault:"content/clubs"`

	MapsAPIKey    string `env:"MAPS_API_KEY"`
	MapsScriptURL string `env:"MAPS_SCRIPT_URL"`
	MapID         string `env:"MAP_ID" envDefault:"fc59b2ef47016cea"`

	CenterLat float64 `env:"MAP_CENTER_LAT" envDefault:"-34.00838607138288"`
	CenterLng float64 `env:"MAP_CENTER_LNG" envDefault:"18.466771295682648"`
	Zoom      float64 `env:"MAP_ZOOM" envDefault:"12"`
	MinZoom   float64 `env:"MAP_MIN_ZOOM" envDefault:"8"`
	MaxZoom   float64 `env:"MAP_MAX_ZOOM" envDefault:"18"`
	Width     int     `env:"MAP_WIDTH" envDefault:"1024"`
	Height    int     `env:"MAP_HEIGHT" envDefault:"768"`

	ClusterRadius float64 `env:"CLUSTER_RADIUS_PX" envDefault:"60"`

	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxSessions int           `env:"MAX_SESSIONS" envDefault:"1000"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config and checks the values that would otherwise fail later
// in less obvious ways.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MinZoom > c.MaxZoom {
		return fmt.Errorf("config: MAP_MIN_ZOOM %v above MAP_MAX_ZOOM %v", c.MinZoom, c.MaxZoom)
	}
	if c.Zoom < c.MinZoom || c.Zoom > c.MaxZoom {
		return fmt.Errorf("config: MAP_ZOOM %v outside [%v, %v]", c.Zoom, c.MinZoom, c.MaxZoom)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("config: MAX_SESSIONS must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	return nil
}

// MapOptions is the initial view every session starts from.
func (c Config) MapOptions() mapprovider.MapOptions {
	return mapprovider.MapOptions{
		Center:  geo.LatLng{Lat: c.CenterLat, Lng: c.CenterLng},
		Zoom:    c.Zoom,
		MinZoom: c.MinZoom,
		MaxZoom: c.MaxZoom,
		MapID:   c.MapID,
		Width:   c.Width,
		Height:  c.Height,
	}
}
