package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dragid10/playlistter/internal/bot"
)

type stubSnapshotter struct {
	snap bot.Snapshot
}

func (s stubSnapshotter) Snapshot() bot.Snapshot { return s.snap }

func TestStart_NilBot(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil bot")
	}
	if !strings.Contains(err.Error(), "bot is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "bot is required")
	}
}

// findFreePort finds an available port for testing.
func findFreePort() int {
	// Use a high port range unlikely to conflict.
	return 18080 + int(time.Now().UnixNano()%1000)
}

func startTestServer(t *testing.T, opts StartOpts) string {
	t.Helper()

	port := findFreePort()
	opts.Port = port
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Start(ctx, opts)
	}()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			return baseURL
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not come up")
	return ""
}

func TestHealthz(t *testing.T) {
	baseURL := startTestServer(t, StartOpts{Bot: stubSnapshotter{}})

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatus_ReportsSnapshot(t *testing.T) {
	next := time.Date(2024, 6, 2, 3, 30, 0, 0, time.UTC)
	baseURL := startTestServer(t, StartOpts{
		Bot: stubSnapshotter{snap: bot.Snapshot{
			PromptID:    "900",
			PromptDate:  "2024-06-01",
			Submissions: 3,
			Watching:    true,
		}},
		NextRun: func() time.Time { return next },
	})

	resp, err := http.Get(baseURL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		PromptID    string `json:"prompt_id"`
		PromptDate  string `json:"prompt_date"`
		Submissions int    `json:"submissions"`
		Watching    bool   `json:"watching"`
		NextCycle   string `json:"next_cycle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PromptID != "900" || body.PromptDate != "2024-06-01" {
		t.Errorf("prompt = %s/%s", body.PromptID, body.PromptDate)
	}
	if body.Submissions != 3 || !body.Watching {
		t.Errorf("submissions = %d watching = %v", body.Submissions, body.Watching)
	}
	if body.NextCycle != next.Format(time.RFC3339) {
		t.Errorf("next_cycle = %q, want %q", body.NextCycle, next.Format(time.RFC3339))
	}
}

func TestStatus_OmitsNextCycleWhenUnscheduled(t *testing.T) {
	baseURL := startTestServer(t, StartOpts{Bot: stubSnapshotter{}})

	resp, err := http.Get(baseURL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["next_cycle"]; ok {
		t.Error("next_cycle should be omitted when unscheduled")
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	baseURL := startTestServer(t, StartOpts{Bot: stubSnapshotter{}})

	resp, err := http.Get(baseURL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
