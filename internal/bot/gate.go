package bot

import (
	"context"
	"fmt"
)

// Outcome is the result of a playlist append attempt.
type Outcome int

const (
	// Added means the track was appended to the playlist.
	Added Outcome = iota
	// AlreadyPresent means the track was already in the playlist and no
	// mutation happened.
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Gate idempotently appends resolved tracks to the target playlist. The
// playlist is re-read on every attempt — membership is never cached, so
// edits made outside the bot between attempts are observed.
type Gate struct {
	catalog    Catalog
	playlistID string
}

// NewGate creates a Gate targeting one playlist.
func NewGate(catalog Catalog, playlistID string) *Gate {
	return &Gate{catalog: catalog, playlistID: playlistID}
}

// TryAppend adds the track to the playlist unless it is already a member.
// The read-check-append sequence is not atomic against concurrent external
// mutation; the daily cycle is the playlist's only writer.
func (g *Gate) TryAppend(ctx context.Context, track Track) (Outcome, error) {
	uris, err := g.catalog.PlaylistTracks(ctx, g.playlistID)
	if err != nil {
		return 0, fmt.Errorf("bot: read playlist %s: %w", g.playlistID, err)
	}
	for _, uri := range uris {
		if uri == track.URI {
			return AlreadyPresent, nil
		}
	}
	if err := g.catalog.AddToPlaylist(ctx, g.playlistID, track.URI); err != nil {
		return 0, fmt.Errorf("bot: append %s: %w", track.URI, err)
	}
	return Added, nil
}
