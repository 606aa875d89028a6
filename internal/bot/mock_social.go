package bot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SentReply records one outbound reply sent through MockSocial.
type SentReply struct {
	Text     string
	ParentID string
}

// MockSocial implements Social for testing. Prompts, search results, and
// stream events are scripted by the test; outbound posts and replies are
// recorded.
type MockSocial struct {
	mu            sync.Mutex
	self          Identity
	prompts       []Prompt
	replies       []SentReply
	postedTexts   []string
	searchResults []ReplyEvent
	watchCh       chan ReplyEvent
	watchCount    int
	stopCount     int
	nextPromptID  int

	selfErr   error
	postErr   error
	searchErr error
	watchErr  error
}

// NewMockSocial creates a MockSocial with the given bot identity.
func NewMockSocial(self Identity) *MockSocial {
	return &MockSocial{self: self}
}

// Self returns the configured identity.
func (m *MockSocial) Self(ctx context.Context) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selfErr != nil {
		return Identity{}, m.selfErr
	}
	return m.self, nil
}

// LastPrompt returns the most recently added prompt, or nil.
func (m *MockSocial) LastPrompt(ctx context.Context) (*Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil, nil
	}
	p := m.prompts[len(m.prompts)-1]
	return &p, nil
}

// Post appends a new prompt with a generated id and returns it.
func (m *MockSocial) Post(ctx context.Context, text string) (Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return Prompt{}, m.postErr
	}
	m.nextPromptID++
	p := Prompt{
		ID:           fmt.Sprintf("prompt-%d", m.nextPromptID),
		AuthorID:     m.self.ID,
		AuthorHandle: m.self.Handle,
		CreatedAt:    time.Now(),
	}
	m.prompts = append(m.prompts, p)
	m.postedTexts = append(m.postedTexts, text)
	return p, nil
}

// Reply records the outbound reply.
func (m *MockSocial) Reply(ctx context.Context, text, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, SentReply{Text: text, ParentID: parentID})
	return nil
}

// SearchReplies returns the scripted historical results.
func (m *MockSocial) SearchReplies(ctx context.Context, handle string, limit int) ([]ReplyEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := m.searchResults
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return append([]ReplyEvent(nil), out...), nil
}

// Watch opens a fresh stream channel and returns it.
func (m *MockSocial) Watch(ctx context.Context, promptID string) (<-chan ReplyEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	m.watchCount++
	m.watchCh = make(chan ReplyEvent, 16)
	return m.watchCh, nil
}

// StopWatch closes the active stream channel, if any.
func (m *MockSocial) StopWatch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCount++
	if m.watchCh != nil {
		close(m.watchCh)
		m.watchCh = nil
	}
	return nil
}

// --- Test helpers ---

// SeedPrompt appends a pre-existing prompt, as if posted on an earlier run.
func (m *MockSocial) SeedPrompt(p Prompt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, p)
}

// SetSearchResults scripts the historical-search response.
func (m *MockSocial) SetSearchResults(events []ReplyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResults = events
}

// SimulateReply delivers an event on the active stream channel.
func (m *MockSocial) SimulateReply(ev ReplyEvent) {
	m.mu.Lock()
	ch := m.watchCh
	m.mu.Unlock()
	if ch != nil {
		ch <- ev
	}
}

// PostedTexts returns the text of every tweet posted via Post.
func (m *MockSocial) PostedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.postedTexts...)
}

// Prompts returns all prompts posted or seeded so far.
func (m *MockSocial) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}

// Replies returns all outbound replies recorded so far.
func (m *MockSocial) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentReply(nil), m.replies...)
}

// LastReply returns the most recent outbound reply.
func (m *MockSocial) LastReply() (SentReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return SentReply{}, false
	}
	return m.replies[len(m.replies)-1], true
}

// WatchCount returns how many times Watch was called.
func (m *MockSocial) WatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchCount
}

// StopCount returns how many times StopWatch was called.
func (m *MockSocial) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

// SetSelfErr makes Self fail, simulating an authentication failure.
func (m *MockSocial) SetSelfErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfErr = err
}

// SetSearchErr makes SearchReplies fail.
func (m *MockSocial) SetSearchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}
