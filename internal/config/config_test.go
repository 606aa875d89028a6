package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
timezone: America/Chicago
schedule: "0 4 * * *"
playlist_url: https://open.spotify.com/playlist/abc123
search_page_size: 200
catalog_limit: 30
status_port: 9090

store:
  path: /var/lib/playlistter/archive.db

twitter:
  bearer_token: tw-bearer
  client_id: tw-client
  client_secret: tw-secret
  refresh_token: tw-refresh

spotify:
  client_id: sp-client
  client_secret: sp-secret
  refresh_token: sp-refresh
  playlist_id: abc123
`

const minimalYAML = `
playlist_url: https://open.spotify.com/playlist/abc123

twitter:
  bearer_token: tw-bearer
  client_id: tw-client
  client_secret: tw-secret
  refresh_token: tw-refresh

spotify:
  client_id: sp-client
  client_secret: sp-secret
  refresh_token: sp-refresh
  playlist_id: abc123
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timezone != "America/Chicago" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "America/Chicago")
	}
	if cfg.Schedule != "0 4 * * *" {
		t.Errorf("Schedule = %q, want %q", cfg.Schedule, "0 4 * * *")
	}
	if cfg.SearchPageSize != 200 {
		t.Errorf("SearchPageSize = %d, want 200", cfg.SearchPageSize)
	}
	if cfg.CatalogLimit != 30 {
		t.Errorf("CatalogLimit = %d, want 30", cfg.CatalogLimit)
	}
	if cfg.StatusPort != 9090 {
		t.Errorf("StatusPort = %d, want 9090", cfg.StatusPort)
	}
	if cfg.Store.Path != "/var/lib/playlistter/archive.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Twitter.BearerToken != "tw-bearer" {
		t.Errorf("Twitter.BearerToken = %q", cfg.Twitter.BearerToken)
	}
	if cfg.Spotify.PlaylistID != "abc123" {
		t.Errorf("Spotify.PlaylistID = %q", cfg.Spotify.PlaylistID)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timezone != "US/Eastern" {
		t.Errorf("Timezone default = %q, want US/Eastern", cfg.Timezone)
	}
	if cfg.Schedule != "30 3 * * *" {
		t.Errorf("Schedule default = %q, want %q", cfg.Schedule, "30 3 * * *")
	}
	if cfg.SearchPageSize != 500 {
		t.Errorf("SearchPageSize default = %d, want 500", cfg.SearchPageSize)
	}
	if cfg.CatalogLimit != 50 {
		t.Errorf("CatalogLimit default = %d, want 50", cfg.CatalogLimit)
	}
	if cfg.Store.Path != "playlistter.db" {
		t.Errorf("Store.Path default = %q, want playlistter.db", cfg.Store.Path)
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte("timezone: UTC\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"playlist_url is required",
		"twitter.bearer_token is required",
		"spotify.playlist_id is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestParse_InvalidTimezone(t *testing.T) {
	bad := strings.Replace(minimalYAML, "playlist_url:", "timezone: Mars/Olympus\nplaylist_url:", 1)
	_, err := Parse([]byte(bad))
	if err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("{{not yaml"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParse_EnvFallbackForSecrets(t *testing.T) {
	withoutBearer := strings.Replace(minimalYAML, "  bearer_token: tw-bearer\n", "", 1)
	t.Setenv("PLAYLISTTER_TWITTER_BEARER_TOKEN", "env-bearer")

	cfg, err := Parse([]byte(withoutBearer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Twitter.BearerToken != "env-bearer" {
		t.Errorf("BearerToken = %q, want env-bearer", cfg.Twitter.BearerToken)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlistter.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "America/Chicago" {
		t.Errorf("Location = %q, want America/Chicago", loc)
	}
}
