package bot

import (
	"context"
	"sync"
)

// MockCatalog implements Catalog for testing. Search results are scripted
// per query; playlist state is held in memory.
type MockCatalog struct {
	mu          sync.Mutex
	results     map[string][]Track // exact query -> results
	fallback    []Track            // returned when no exact query matches
	playlists   map[string][]string
	searchCalls []string
	addCalls    int

	searchErr error
	readErr   error
	addErr    error
}

// NewMockCatalog creates an empty MockCatalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		results:   make(map[string][]Track),
		playlists: make(map[string][]string),
	}
}

// Search returns the scripted results for the query, falling back to the
// default result set.
func (m *MockCatalog) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out, ok := m.results[query]
	if !ok {
		out = m.fallback
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return append([]Track(nil), out...), nil
}

// PlaylistTracks returns the current playlist membership.
func (m *MockCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]string(nil), m.playlists[playlistID]...), nil
}

// AddToPlaylist appends the uri to the playlist.
func (m *MockCatalog) AddToPlaylist(ctx context.Context, playlistID, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	m.playlists[playlistID] = append(m.playlists[playlistID], uri)
	return nil
}

// --- Test helpers ---

// SetResults scripts the search response for an exact query.
func (m *MockCatalog) SetResults(query string, tracks []Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = tracks
}

// SetFallback scripts the search response for any unscripted query.
func (m *MockCatalog) SetFallback(tracks []Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = tracks
}

// SeedPlaylist sets the playlist's initial membership.
func (m *MockCatalog) SeedPlaylist(playlistID string, uris []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists[playlistID] = uris
}

// Playlist returns the playlist's current membership.
func (m *MockCatalog) Playlist(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.playlists[playlistID]...)
}

// SearchCalls returns the queries issued so far.
func (m *MockCatalog) SearchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searchCalls...)
}

// AddCalls returns how many times AddToPlaylist was called.
func (m *MockCatalog) AddCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCalls
}

// SetSearchErr makes Search fail.
func (m *MockCatalog) SetSearchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

// SetReadErr makes PlaylistTracks fail.
func (m *MockCatalog) SetReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetAddErr makes AddToPlaylist fail.
func (m *MockCatalog) SetAddErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addErr = err
}
