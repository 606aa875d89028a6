package twitter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/dragid10/playlistter/internal/bot"
)

// streamBufferSize bounds pending events between the stream reader and the
// controller's drain goroutine.
const streamBufferSize = 100

// Watch replaces the filtered-stream rule with one matching replies to
// promptID and starts a reader goroutine. Events arrive on the returned
// channel in stream order; the channel closes when ctx is cancelled,
// StopWatch is called, or reconnection gives up.
func (c *Client) Watch(ctx context.Context, promptID string) (<-chan bot.ReplyEvent, error) {
	if err := c.setStreamRule(ctx, promptID); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	out := make(chan bot.ReplyEvent, streamBufferSize)

	c.mu.Lock()
	c.streamCancel = cancel
	c.streamDone = done
	c.mu.Unlock()

	go c.runStream(streamCtx, promptID, out, done)
	return out, nil
}

// StopWatch disconnects the active stream and waits for the reader to
// finish. Safe to call when no stream is active.
func (c *Client) StopWatch() error {
	c.mu.Lock()
	cancel := c.streamCancel
	done := c.streamDone
	c.streamCancel = nil
	c.streamDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// setStreamRule deletes all existing filtered-stream rules and installs a
// single rule matching replies to promptID. Yesterday's rule must not
// survive, or the stream would deliver replies to a superseded prompt.
func (c *Client) setStreamRule(ctx context.Context, promptID string) error {
	rulesURL := c.baseURL + "/2/tweets/search/stream/rules"

	var existing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, c.app, rulesURL, &existing); err != nil {
		return fmt.Errorf("twitter: fetch stream rules: %w", err)
	}

	if len(existing.Data) > 0 {
		ids := make([]string, len(existing.Data))
		for i, r := range existing.Data {
			ids[i] = r.ID
		}
		body := map[string]any{"delete": map[string]any{"ids": ids}}
		if err := c.postJSON(ctx, c.app, rulesURL, body, nil); err != nil {
			return fmt.Errorf("twitter: delete stream rules: %w", err)
		}
	}

	body := map[string]any{
		"add": []map[string]string{
			{"value": "in_reply_to_tweet_id:" + promptID, "tag": "prompt-replies"},
		},
	}
	if err := c.postJSON(ctx, c.app, rulesURL, body, nil); err != nil {
		return fmt.Errorf("twitter: add stream rule: %w", err)
	}
	return nil
}

// runStream connects to the filtered stream and pumps events to out,
// reconnecting with exponential backoff on disconnects. It owns out and
// closes it on exit.
func (c *Client) runStream(ctx context.Context, promptID string, out chan<- bot.ReplyEvent, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		err := c.readStream(ctx, promptID, out)
		if ctx.Err() != nil {
			return
		}

		wait := c.backoff(attempt)
		log.Printf("twitter: stream disconnected (%v), reconnecting in %v (attempt %d/%d)",
			err, wait, attempt+1, maxReconnectAttempts)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	log.Printf("twitter: stream gave up after %d reconnect attempts", maxReconnectAttempts)
}

// readStream holds one streaming connection open and decodes line-delimited
// tweet payloads until the connection drops or ctx is cancelled.
func (c *Client) readStream(ctx context.Context, promptID string, out chan<- bot.ReplyEvent) error {
	q := url.Values{}
	q.Set("tweet.fields", "author_id,created_at,referenced_tweets")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	u := c.baseURL + "/2/tweets/search/stream?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.app.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	log.Printf("twitter: stream connected, watching replies to %s", promptID)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // keep-alive newline
		}

		var payload struct {
			Data     apiTweet    `json:"data"`
			Includes apiIncludes `json:"includes"`
		}
		if err := json.Unmarshal(line, &payload); err != nil {
			log.Printf("twitter: skip undecodable stream line: %v", err)
			continue
		}
		if payload.Data.ID == "" {
			continue
		}

		ev := bot.ReplyEvent{
			ID:           payload.Data.ID,
			AuthorID:     payload.Data.AuthorID,
			AuthorHandle: payload.Includes.handleFor(payload.Data.AuthorID),
			Text:         payload.Data.Text,
			InReplyTo:    payload.Data.repliedTo(),
			CreatedAt:    payload.Data.CreatedAt,
		}
		if ev.InReplyTo == "" {
			// The rule already filters by parent; trust it when the
			// referenced-tweet expansion is missing.
			ev.InReplyTo = promptID
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- ev:
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed by server")
}
