// Package bot implements the daily song-suggestion cycle: prompt issuance,
// reply intake, catalog resolution, and idempotent playlist appends.
package bot

import (
	"context"
	"time"
)

// Prompt is the bot's daily root tweet inviting suggestions. It is created
// once per day and superseded, never deleted, by the next day's prompt.
type Prompt struct {
	ID           string
	AuthorID     string
	AuthorHandle string
	CreatedAt    time.Time
}

// ReplyEvent is an inbound candidate reply to the prompt, delivered live by
// the stream or recovered from historical search. Delivery is at-least-once;
// handling must tolerate duplicates.
type ReplyEvent struct {
	ID           string
	AuthorID     string
	AuthorHandle string
	Text         string
	InReplyTo    string // parent tweet id
	CreatedAt    time.Time
}

// Track is a resolved catalog entry. Artists is ordered; the first entry is
// the primary artist.
type Track struct {
	URI     string
	Title   string
	Artists []string
}

// Identity describes the authenticated bot account.
type Identity struct {
	ID     string
	Handle string
}

// Social is the Twitter-side collaborator: identity, posting, replying,
// historical reply search, and the live reply stream.
type Social interface {
	// Self returns the authenticated account. Doubles as a credential check.
	Self(ctx context.Context) (Identity, error)

	// LastPrompt returns the most recent self-authored top-level tweet,
	// excluding replies and retweets, or nil if none exists.
	LastPrompt(ctx context.Context) (*Prompt, error)

	// Post publishes a new top-level tweet and returns it as a Prompt.
	Post(ctx context.Context, text string) (Prompt, error)

	// Reply posts text as a reply to the tweet with parentID.
	Reply(ctx context.Context, text, parentID string) error

	// SearchReplies returns up to limit recent tweets addressed to handle,
	// oldest first.
	SearchReplies(ctx context.Context, handle string, limit int) ([]ReplyEvent, error)

	// Watch returns a channel of live replies to the tweet with promptID.
	// The channel is closed when the context is cancelled, StopWatch is
	// called, or the stream gives up reconnecting.
	Watch(ctx context.Context, promptID string) (<-chan ReplyEvent, error)

	// StopWatch disconnects the active stream and waits for it to finish.
	// Safe to call when no stream is active.
	StopWatch() error
}

// Catalog is the Spotify-side collaborator: track search and playlist
// read/append.
type Catalog interface {
	// Search returns up to limit tracks matching the free-text query, in
	// the catalog's own relevance order.
	Search(ctx context.Context, query string, limit int) ([]Track, error)

	// PlaylistTracks returns the track URIs currently in the playlist, in
	// playlist order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]string, error)

	// AddToPlaylist appends one track to the end of the playlist.
	AddToPlaylist(ctx context.Context, playlistID, uri string) error
}

// AcceptedSubmission is one accepted suggestion as handed to the Archiver.
type AcceptedSubmission struct {
	Day          string // YYYY-MM-DD in the reference timezone
	PromptID     string
	AuthorID     string
	AuthorHandle string
	Proposal     string
	TrackURI     string
	TrackTitle   string
	TrackArtist  string
}

// Archiver persists accepted submissions. Optional; the controller works
// without one.
type Archiver interface {
	Archive(ctx context.Context, sub AcceptedSubmission) error
}
