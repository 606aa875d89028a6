package bot

import (
	"strings"
	"sync"
)

// Ledger enforces the one-suggestion-per-user-per-day rule. It maps author
// id to the accepted proposal text and is scoped to a single prompt's
// lifetime: Reset is called when a new prompt is issued, and Rehydrate
// rebuilds it from historical replies after a process restart.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]string // author id -> accepted proposal text
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// Reset drops all entries.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]string)
}

// HasSubmitted reports whether the author already has an accepted
// suggestion for the current prompt.
func (l *Ledger) HasSubmitted(authorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[authorID]
	return ok
}

// Record stores the author's accepted proposal. Last write wins; the
// HasSubmitted gate upstream normally prevents a second write, but a
// repeat is harmless.
func (l *Ledger) Record(authorID, proposal string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[authorID] = proposal
}

// Proposal returns the recorded proposal text for the author.
func (l *Ledger) Proposal(authorID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.entries[authorID]
	return p, ok
}

// Len returns the number of authors with an accepted suggestion.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Rehydrate repopulates the ledger from a batch of historical replies.
// Only events whose parent is the current prompt count, and the first
// event seen per author wins, so events must be passed in arrival order.
func (l *Ledger) Rehydrate(events []ReplyEvent, current Prompt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range events {
		if ev.InReplyTo != current.ID {
			continue
		}
		if _, ok := l.entries[ev.AuthorID]; ok {
			continue
		}
		l.entries[ev.AuthorID] = strings.TrimSpace(ev.Text)
	}
}
