package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient points a Client at a local test server with no OAuth
// transports and near-zero backoff.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(ClientOpts{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.baseBackoff = time.Millisecond
	c.maxBackoff = 10 * time.Millisecond
	return c, srv
}

func TestNew_MissingCredentials(t *testing.T) {
	if _, err := New(ClientOpts{}); err == nil {
		t.Fatal("expected error for missing bearer token")
	}
	if _, err := New(ClientOpts{BearerToken: "b"}); err == nil {
		t.Fatal("expected error for missing user credentials")
	}
}

func TestSelf_CachesIdentity(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data":{"id":"42","name":"Playlistter","username":"playlistter"}}`)
	})
	c, _ := newTestClient(t, mux)

	for i := 0; i < 2; i++ {
		id, err := c.Self(context.Background())
		if err != nil {
			t.Fatalf("self: %v", err)
		}
		if id.ID != "42" || id.Handle != "playlistter" {
			t.Fatalf("unexpected identity %+v", id)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 API call, got %d", n)
	}
}

func TestLastPrompt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"42","username":"playlistter"}}`)
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("exclude"); got != "replies,retweets" {
			t.Errorf("exclude = %q, want replies,retweets", got)
		}
		fmt.Fprint(w, `{"data":[{"id":"900","text":"~~ Good Day! ~~","created_at":"2024-06-01T08:30:00Z"}]}`)
	})
	c, _ := newTestClient(t, mux)

	p, err := c.LastPrompt(context.Background())
	if err != nil {
		t.Fatalf("last prompt: %v", err)
	}
	if p == nil || p.ID != "900" || p.AuthorHandle != "playlistter" {
		t.Fatalf("unexpected prompt %+v", p)
	}
	if !p.CreatedAt.Equal(time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %v", p.CreatedAt)
	}
}

func TestLastPrompt_EmptyTimeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"42","username":"playlistter"}}`)
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta":{"result_count":0}}`)
	})
	c, _ := newTestClient(t, mux)

	p, err := c.LastPrompt(context.Background())
	if err != nil {
		t.Fatalf("last prompt: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil prompt, got %+v", p)
	}
}

func TestPostAndReply(t *testing.T) {
	var bodies []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"42","username":"playlistter"}}`)
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"901"}}`)
	})
	c, _ := newTestClient(t, mux)

	p, err := c.Post(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if p.ID != "901" || p.AuthorID != "42" {
		t.Fatalf("unexpected prompt %+v", p)
	}

	if err := c.Reply(context.Background(), "thanks!", "900"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 tweet calls, got %d", len(bodies))
	}
	if bodies[0]["text"] != "hello world" {
		t.Errorf("post text = %v", bodies[0]["text"])
	}
	reply, ok := bodies[1]["reply"].(map[string]any)
	if !ok || reply["in_reply_to_tweet_id"] != "900" {
		t.Errorf("reply body = %v", bodies[1])
	}
}

func TestSearchReplies_PaginatesAndReordersOldestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "to:playlistter" {
			t.Errorf("query = %q, want to:playlistter", got)
		}
		if r.URL.Query().Get("next_token") == "" {
			// Page 1: newest tweets.
			fmt.Fprint(w, `{
				"data":[
					{"id":"3","text":"@playlistter c - z","author_id":"u3","referenced_tweets":[{"type":"replied_to","id":"900"}]},
					{"id":"2","text":"@playlistter b - y","author_id":"u2","referenced_tweets":[{"type":"replied_to","id":"900"}]}
				],
				"includes":{"users":[{"id":"u3","username":"carol"},{"id":"u2","username":"bob"}]},
				"meta":{"next_token":"page2"}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"data":[
				{"id":"1","text":"@playlistter a - x","author_id":"u1","referenced_tweets":[{"type":"replied_to","id":"899"}]}
			],
			"includes":{"users":[{"id":"u1","username":"alice"}]},
			"meta":{}
		}`)
	})
	c, _ := newTestClient(t, mux)

	events, err := c.SearchReplies(context.Background(), "playlistter", 500)
	if err != nil {
		t.Fatalf("search replies: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].ID != "1" || events[2].ID != "3" {
		t.Fatalf("expected oldest-first order, got %s..%s", events[0].ID, events[2].ID)
	}
	if events[0].InReplyTo != "899" || events[1].InReplyTo != "900" {
		t.Fatalf("parent ids wrong: %+v", events)
	}
	if events[1].AuthorHandle != "bob" {
		t.Fatalf("expected handle resolved from includes, got %q", events[1].AuthorHandle)
	}
}

func TestSearchReplies_HonorsLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data":[{"id":"3","author_id":"u3"},{"id":"2","author_id":"u2"},{"id":"1","author_id":"u1"}],
			"meta":{"next_token":"more"}
		}`)
	})
	c, _ := newTestClient(t, mux)

	events, err := c.SearchReplies(context.Background(), "playlistter", 2)
	if err != nil {
		t.Fatalf("search replies: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit respected, got %d events", len(events))
	}
}

func TestDoJSON_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"id":"42","username":"playlistter"}}`)
	})
	c, _ := newTestClient(t, mux)

	if _, err := c.Self(context.Background()); err != nil {
		t.Fatalf("self: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected retry after 429, got %d calls", n)
	}
}

func TestDoJSON_SurfacesAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"title":"Unauthorized"}`)
	})
	c, _ := newTestClient(t, mux)

	if _, err := c.Self(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
}
