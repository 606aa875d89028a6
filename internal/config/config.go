// Package config provides YAML-based configuration loading for Playlistter.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Playlistter configuration, loaded from
// playlistter.yaml. Secrets may be left out of the file and supplied via
// PLAYLISTTER_* environment variables instead.
type Config struct {
	Timezone       string        `yaml:"timezone"`         // reference timezone for "today"
	Schedule       string        `yaml:"schedule"`         // 5-field cron expression for the daily cycle
	PlaylistURL    string        `yaml:"playlist_url"`     // public link included in the daily prompt
	SearchPageSize int           `yaml:"search_page_size"` // historical-search recovery sweep bound
	CatalogLimit   int           `yaml:"catalog_limit"`    // catalog search result bound
	StatusPort     int           `yaml:"status_port"`      // 0 disables the status endpoint
	Store          StoreConfig   `yaml:"store"`
	Twitter        TwitterConfig `yaml:"twitter"`
	Spotify        SpotifyConfig `yaml:"spotify"`
}

// StoreConfig holds settings for the local submission archive.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TwitterConfig holds Twitter API v2 credentials. The app-only bearer token
// drives search and the filtered stream; the OAuth2 user-context refresh
// token drives posting and replying.
type TwitterConfig struct {
	BearerToken  string `yaml:"bearer_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// SpotifyConfig holds Spotify Web API credentials. The refresh token must
// carry the playlist-modify-public scope.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	PlaylistID   string `yaml:"playlist_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values and environment-variable fallbacks
// for secrets.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "US/Eastern"
	}
	if c.Schedule == "" {
		c.Schedule = "30 3 * * *"
	}
	if c.SearchPageSize == 0 {
		c.SearchPageSize = 500
	}
	if c.CatalogLimit == 0 {
		c.CatalogLimit = 50
	}
	if c.Store.Path == "" {
		c.Store.Path = "playlistter.db"
	}

	envDefault(&c.Twitter.BearerToken, "PLAYLISTTER_TWITTER_BEARER_TOKEN")
	envDefault(&c.Twitter.ClientID, "PLAYLISTTER_TWITTER_CLIENT_ID")
	envDefault(&c.Twitter.ClientSecret, "PLAYLISTTER_TWITTER_CLIENT_SECRET")
	envDefault(&c.Twitter.RefreshToken, "PLAYLISTTER_TWITTER_REFRESH_TOKEN")
	envDefault(&c.Spotify.ClientID, "PLAYLISTTER_SPOTIFY_CLIENT_ID")
	envDefault(&c.Spotify.ClientSecret, "PLAYLISTTER_SPOTIFY_CLIENT_SECRET")
	envDefault(&c.Spotify.RefreshToken, "PLAYLISTTER_SPOTIFY_REFRESH_TOKEN")
}

func envDefault(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is invalid", c.Timezone))
	}
	if c.PlaylistURL == "" {
		errs = append(errs, "playlist_url is required")
	}
	if c.Twitter.BearerToken == "" {
		errs = append(errs, "twitter.bearer_token is required")
	}
	if c.Twitter.ClientID == "" || c.Twitter.ClientSecret == "" || c.Twitter.RefreshToken == "" {
		errs = append(errs, "twitter client_id, client_secret, and refresh_token are required")
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
		errs = append(errs, "spotify client_id, client_secret, and refresh_token are required")
	}
	if c.Spotify.PlaylistID == "" {
		errs = append(errs, "spotify.playlist_id is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the reference timezone as a *time.Location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
