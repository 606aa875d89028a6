// Package twitter implements the bot.Social collaborator over the Twitter
// API v2: REST for identity, posting, and search, and the filtered stream
// for live replies.
package twitter

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
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/dragid10/playlistter/internal/bot"
)

const (
	defaultBaseURL = "https://api.twitter.com"
	// maxRetries is the max number of retries for rate-limited REST calls.
	maxRetries = 3
	// baseBackoff is the initial backoff for retries and stream reconnects.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
	// maxReconnectAttempts limits stream reconnects before giving up, at
	// which point the watch channel closes and the next daily cycle re-arms.
	maxReconnectAttempts = 25
	// searchPageSize is the API maximum for one recent-search page.
	searchPageSize = 100
)

// Client talks to the Twitter API v2 and implements bot.Social. The
// app-only bearer token drives recent search and the filtered stream; the
// OAuth2 user context drives identity, timeline, posting, and replying.
type Client struct {
	baseURL     string
	app         *http.Client
	user        *http.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu           sync.Mutex
	self         *bot.Identity
	streamCancel context.CancelFunc
	streamDone   chan struct{}
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BearerToken  string // app-only bearer: search + stream
	ClientID     string // OAuth2 user context: post + reply
	ClientSecret string
	RefreshToken string

	// For testing: point at a local server and skip OAuth transports.
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Client. Token refresh is handled by the injected oauth2
// transports; an expired refresh token surfaces as an error on first use.
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
		c.app = opts.HTTPClient
		c.user = opts.HTTPClient
		return c, nil
	}

	if opts.BearerToken == "" {
		return nil, fmt.Errorf("twitter: bearer token is required")
	}
	if opts.ClientID == "" || opts.ClientSecret == "" || opts.RefreshToken == "" {
		return nil, fmt.Errorf("twitter: client id, client secret, and refresh token are required")
	}

	ctx := context.Background()
	c.app = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.BearerToken,
	}))

	userCfg := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: baseURL + "/2/oauth2/token"},
	}
	c.user = oauth2.NewClient(ctx, userCfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: opts.RefreshToken,
	}))

	return c, nil
}

// --- API wire types ---

type apiUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type apiTweet struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	AuthorID         string    `json:"author_id"`
	CreatedAt        time.Time `json:"created_at"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// repliedTo returns the id of the tweet this one replies to, if any.
func (t apiTweet) repliedTo() string {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "replied_to" {
			return ref.ID
		}
	}
	return ""
}

type apiIncludes struct {
	Users []apiUser `json:"users"`
}

func (inc apiIncludes) handleFor(authorID string) string {
	for _, u := range inc.Users {
		if u.ID == authorID {
			return u.Username
		}
	}
	return ""
}

// Self returns the authenticated bot account, cached after the first call.
func (c *Client) Self(ctx context.Context) (bot.Identity, error) {
	c.mu.Lock()
	if c.self != nil {
		id := *c.self
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var resp struct {
		Data apiUser `json:"data"`
	}
	if err := c.getJSON(ctx, c.user, c.baseURL+"/2/users/me", &resp); err != nil {
		return bot.Identity{}, fmt.Errorf("twitter: verify credentials: %w", err)
	}

	id := bot.Identity{ID: resp.Data.ID, Handle: resp.Data.Username}
	c.mu.Lock()
	c.self = &id
	c.mu.Unlock()
	return id, nil
}

// LastPrompt returns the bot's most recent top-level tweet, excluding
// replies and retweets, or nil if the timeline is empty.
func (c *Client) LastPrompt(ctx context.Context) (*bot.Prompt, error) {
	self, err := c.Self(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("exclude", "replies,retweets")
	q.Set("max_results", "5")
	q.Set("tweet.fields", "created_at,author_id")

	var resp struct {
		Data []apiTweet `json:"data"`
	}
	u := fmt.Sprintf("%s/2/users/%s/tweets?%s", c.baseURL, self.ID, q.Encode())
	if err := c.getJSON(ctx, c.user, u, &resp); err != nil {
		return nil, fmt.Errorf("twitter: user timeline: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	t := resp.Data[0]
	return &bot.Prompt{
		ID:           t.ID,
		AuthorID:     self.ID,
		AuthorHandle: self.Handle,
		CreatedAt:    t.CreatedAt,
	}, nil
}

// Post publishes a new top-level tweet.
func (c *Client) Post(ctx context.Context, text string) (bot.Prompt, error) {
	self, err := c.Self(ctx)
	if err != nil {
		return bot.Prompt{}, err
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	body := map[string]any{"text": text}
	if err := c.postJSON(ctx, c.user, c.baseURL+"/2/tweets", body, &resp); err != nil {
		return bot.Prompt{}, fmt.Errorf("twitter: post tweet: %w", err)
	}

	return bot.Prompt{
		ID:           resp.Data.ID,
		AuthorID:     self.ID,
		AuthorHandle: self.Handle,
		CreatedAt:    time.Now(),
	}, nil
}

// Reply posts text as a reply to parentID.
func (c *Client) Reply(ctx context.Context, text, parentID string) error {
	body := map[string]any{
		"text":  text,
		"reply": map[string]string{"in_reply_to_tweet_id": parentID},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, c.user, c.baseURL+"/2/tweets", body, &resp); err != nil {
		return fmt.Errorf("twitter: reply to %s: %w", parentID, err)
	}
	return nil
}

// SearchReplies pages through recent tweets addressed to handle, up to
// limit, and returns them oldest first. The API returns newest first; the
// order is flipped so ledger rehydration sees arrival order.
func (c *Client) SearchReplies(ctx context.Context, handle string, limit int) ([]bot.ReplyEvent, error) {
	var events []bot.ReplyEvent
	nextToken := ""

	for {
		q := url.Values{}
		q.Set("query", "to:"+handle)
		q.Set("max_results", strconv.Itoa(searchPageSize))
		q.Set("tweet.fields", "author_id,created_at,referenced_tweets")
		q.Set("expansions", "author_id")
		q.Set("user.fields", "username")
		if nextToken != "" {
			q.Set("next_token", nextToken)
		}

		var resp struct {
			Data     []apiTweet  `json:"data"`
			Includes apiIncludes `json:"includes"`
			Meta     struct {
				NextToken string `json:"next_token"`
			} `json:"meta"`
		}
		u := c.baseURL + "/2/tweets/search/recent?" + q.Encode()
		if err := c.getJSON(ctx, c.app, u, &resp); err != nil {
			return nil, fmt.Errorf("twitter: recent search: %w", err)
		}

		for _, t := range resp.Data {
			events = append(events, bot.ReplyEvent{
				ID:           t.ID,
				AuthorID:     t.AuthorID,
				AuthorHandle: resp.Includes.handleFor(t.AuthorID),
				Text:         t.Text,
				InReplyTo:    t.repliedTo(),
				CreatedAt:    t.CreatedAt,
			})
		}

		if limit > 0 && len(events) >= limit {
			events = events[:limit]
			break
		}
		if resp.Meta.NextToken == "" {
			break
		}
		nextToken = resp.Meta.NextToken
	}

	// Newest-first from the API; flip to arrival order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// --- HTTP helpers ---

func (c *Client) getJSON(ctx context.Context, hc *http.Client, url string, out any) error {
	return c.doJSON(ctx, hc, http.MethodGet, url, nil, out)
}

func (c *Client) postJSON(ctx context.Context, hc *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return c.doJSON(ctx, hc, http.MethodPost, url, payload, out)
}

// doJSON performs one JSON request, retrying with exponential backoff on
// 429 responses.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, url string, body []byte, out any) error {
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

		resp, err := hc.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			resp.Body.Close()
			wait := c.backoff(attempt)
			log.Printf("twitter: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)
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
