// Package spotify implements the bot.Catalog collaborator over the Spotify
// Web API: track search and playlist read/append.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/dragid10/playlistter/internal/bot"
)

const (
	defaultBaseURL = "https://api.spotify.com"
	tokenURL       = "https://accounts.spotify.com/api/token"
	// maxRetries is the max number of retries for rate-limited calls.
	maxRetries = 3
	// baseBackoff is the initial backoff for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
	// playlistPageSize is the API maximum for one playlist-items page.
	playlistPageSize = 100
)

// Client talks to the Spotify Web API and implements bot.Catalog. The
// OAuth2 refresh token must carry the playlist-modify scopes.
type Client struct {
	baseURL     string
	http        *http.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// For testing: point at a local server and skip the OAuth transport.
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Client. Access tokens are minted from the refresh token by
// the oauth2 transport; a revoked refresh token surfaces on first use.
func New(opts ClientOpts) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		baseURL:     baseURL,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}

	if opts.HTTPClient != nil {
		c.http = opts.HTTPClient
		return c, nil
	}

	if opts.ClientID == "" || opts.ClientSecret == "" || opts.RefreshToken == "" {
		return nil, fmt.Errorf("spotify: client id, client secret, and refresh token are required")
	}

	cfg := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	ctx := context.Background()
	c.http = oauth2.NewClient(ctx, cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: opts.RefreshToken,
	}))

	return c, nil
}

// --- API wire types ---

type apiTrack struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (t apiTrack) toTrack() bot.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return bot.Track{URI: t.URI, Title: t.Name, Artists: artists}
}

// Search returns up to limit tracks matching query, in Spotify's relevance
// order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]bot.Track, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Tracks struct {
			Items []apiTrack `json:"items"`
		} `json:"tracks"`
	}
	u := c.baseURL + "/v1/search?" + q.Encode()
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("spotify: search %q: %w", query, err)
	}

	tracks := make([]bot.Track, len(resp.Tracks.Items))
	for i, item := range resp.Tracks.Items {
		tracks[i] = item.toTrack()
	}
	return tracks, nil
}

// PlaylistTracks pages through the playlist and returns every track URI in
// playlist order. Always a fresh read; nothing is cached.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	q := url.Values{}
	q.Set("fields", "items(track(uri)),next")
	q.Set("limit", strconv.Itoa(playlistPageSize))

	var uris []string
	next := fmt.Sprintf("%s/v1/playlists/%s/tracks?%s", c.baseURL, playlistID, q.Encode())
	for next != "" {
		var resp struct {
			Items []struct {
				Track struct {
					URI string `json:"uri"`
				} `json:"track"`
			} `json:"items"`
			Next string `json:"next"`
		}
		if err := c.getJSON(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("spotify: read playlist %s: %w", playlistID, err)
		}
		for _, item := range resp.Items {
			if item.Track.URI != "" {
				uris = append(uris, item.Track.URI)
			}
		}
		next = resp.Next
	}
	return uris, nil
}

// AddToPlaylist appends one track to the end of the playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, uri string) error {
	body := map[string]any{"uris": []string{uri}}
	u := fmt.Sprintf("%s/v1/playlists/%s/tracks", c.baseURL, playlistID)
	if err := c.postJSON(ctx, u, body, nil); err != nil {
		return fmt.Errorf("spotify: add %s to playlist %s: %w", uri, playlistID, err)
	}
	return nil
}

// Verify confirms the credentials work by fetching the current user. Used
// by the doctor command.
func (c *Client) Verify(ctx context.Context) (string, error) {
	var resp struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/v1/me", &resp); err != nil {
		return "", fmt.Errorf("spotify: verify credentials: %w", err)
	}
	if resp.DisplayName != "" {
		return resp.DisplayName, nil
	}
	return resp.ID, nil
}

// --- HTTP helpers ---

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, payload, out)
}

// doJSON performs one JSON request, retrying on 429 responses. Spotify
// sends a Retry-After header in seconds; it takes precedence over the
// exponential backoff when present.
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			wait := c.backoff(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			resp.Body.Close()
			log.Printf("spotify: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, bytes.TrimSpace(data))
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.baseBackoff
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	return wait
}
