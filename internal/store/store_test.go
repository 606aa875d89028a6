package store

import (
	"context"
	"testing"

	"github.com/dragid10/playlistter/internal/bot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return s
}

func sampleSubmission(day, author, uri string) bot.AcceptedSubmission {
	return bot.AcceptedSubmission{
		Day:          day,
		PromptID:     "p1",
		AuthorID:     author,
		AuthorHandle: author,
		Proposal:     "some song - some artist",
		TrackURI:     uri,
		TrackTitle:   "Some Song",
		TrackArtist:  "Some Artist",
	}
}

func TestStore_ArchiveAndByDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Archive(ctx, sampleSubmission("2024-06-01", "u1", "spotify:track:a")); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.Archive(ctx, sampleSubmission("2024-06-01", "u2", "spotify:track:b")); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.Archive(ctx, sampleSubmission("2024-06-02", "u1", "spotify:track:c")); err != nil {
		t.Fatalf("archive: %v", err)
	}

	subs, err := s.ByDay("2024-06-01")
	if err != nil {
		t.Fatalf("by day: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].AuthorID != "u1" || subs[1].AuthorID != "u2" {
		t.Fatalf("expected oldest-first order, got %s then %s", subs[0].AuthorID, subs[1].AuthorID)
	}

	n, err := s.CountForDay("2024-06-01")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

func TestStore_Recent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, uri := range []string{"spotify:track:a", "spotify:track:b", "spotify:track:c"} {
		if err := s.Archive(ctx, sampleSubmission("2024-06-01", "u1", uri)); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}

	subs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].TrackURI != "spotify:track:c" {
		t.Fatalf("expected newest first, got %s", subs[0].TrackURI)
	}
}

func TestStore_RecentDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	subs, err := s.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected empty archive, got %d rows", len(subs))
	}
}
