package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Reply texts sent back to submitting users. Deployed copies of the bot
// rely on these verbatim.
const (
	msgAdded         = "I've added your song to the playlist!"
	msgAlreadyInList = "This song is already in the playlist! Feel free to choose a different one"
	msgAlreadyToday  = "Sorry but you've already submitted a song for today! Try again tomorrow"
)

// promptTemplate is the daily invitation tweet. The placeholder is the
// playlist URL.
const promptTemplate = "~~ Good Day! ~~\n\nHelp build out the crowd-sourced playlist by directly replying to this tweet in the following format: song - artist\n\n*The only catch is that you can only suggest one song per day!*\n\nPlaylist Link: %s"

// DefaultSearchPageSize bounds the historical-search recovery sweep.
const DefaultSearchPageSize = 500

// Controller drives the daily state machine: it decides whether a new
// prompt is needed, resets and rehydrates the ledger, and owns the live
// reply watcher. RunDailyCycle is invoked once per day by the scheduler
// and is re-entrant; HandleReply runs on the single watcher goroutine.
type Controller struct {
	social      Social
	resolver    *Resolver
	gate        *Gate
	ledger      *Ledger
	archiver    Archiver
	playlistURL string
	pageSize    int
	loc         *time.Location
	out         io.Writer

	mu          sync.Mutex
	self        Identity
	current     *Prompt
	watching    bool
	cancelWatch context.CancelFunc
	drained     chan struct{}
}

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	Social         Social
	Catalog        Catalog
	Ledger         *Ledger  // optional; a fresh one is created if nil
	Archiver       Archiver // optional; accepted submissions are persisted if set
	PlaylistID     string
	PlaylistURL    string
	CatalogLimit   int            // defaults to DefaultCatalogLimit
	SearchPageSize int            // defaults to DefaultSearchPageSize
	Location       *time.Location // reference timezone; defaults to time.Local
	Out            io.Writer      // defaults to os.Stdout
}

// NewController creates a Controller with the given options.
func NewController(opts ControllerOpts) (*Controller, error) {
	if opts.Social == nil {
		return nil, fmt.Errorf("bot: social is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("bot: catalog is required")
	}
	if opts.PlaylistID == "" {
		return nil, fmt.Errorf("bot: playlist id is required")
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = NewLedger()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	pageSize := opts.SearchPageSize
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Controller{
		social:      opts.Social,
		resolver:    NewResolver(opts.Catalog, opts.CatalogLimit),
		gate:        NewGate(opts.Catalog, opts.PlaylistID),
		ledger:      ledger,
		archiver:    opts.Archiver,
		playlistURL: opts.PlaylistURL,
		pageSize:    pageSize,
		loc:         loc,
		out:         out,
	}, nil
}

// Ledger exposes the controller's ledger, mainly for rehydration tests and
// the status endpoint.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// RunDailyCycle performs one scheduled invocation of the daily state
// machine. Running it twice on the same day keeps the existing prompt and
// ledger and only re-arms the watcher; running it after a mid-day restart
// recovers the ledger from historical search before any live reply is
// handled.
func (c *Controller) RunDailyCycle(ctx context.Context) error {
	self, err := c.social.Self(ctx)
	if err != nil {
		return fmt.Errorf("bot: verify identity: %w", err)
	}
	c.mu.Lock()
	c.self = self
	c.mu.Unlock()

	last, err := c.social.LastPrompt(ctx)
	if err != nil {
		return fmt.Errorf("bot: fetch last prompt: %w", err)
	}

	// A freshly posted prompt is authoritative by construction, so no
	// second fetch is needed after posting.
	current := last
	if last == nil || !sameDay(last.CreatedAt, time.Now(), c.loc) {
		c.ledger.Reset()
		posted, err := c.social.Post(ctx, fmt.Sprintf(promptTemplate, c.playlistURL))
		if err != nil {
			return fmt.Errorf("bot: post prompt: %w", err)
		}
		fmt.Fprintf(c.out, "Prompted for songs (tweet %s)\n", posted.ID)
		current = &posted
	}

	// Recover suggestions that arrived while the process was down. The
	// search is addressed to the bot's handle; Rehydrate keeps only events
	// whose parent is the current prompt.
	events, err := c.social.SearchReplies(ctx, self.Handle, c.pageSize)
	if err != nil {
		return fmt.Errorf("bot: recover replies: %w", err)
	}
	c.ledger.Rehydrate(events, *current)

	// The old watcher must be fully stopped before a new one is armed, or
	// the same reply could be processed twice.
	if err := c.stopWatcher(); err != nil {
		log.Printf("bot: stop watcher: %v", err)
	}
	return c.startWatcher(*current)
}

// startWatcher arms the live reply stream against the current prompt and
// starts the single drain goroutine. The watch context is detached from
// the daily-cycle context so the stream outlives the scheduled job.
func (c *Controller) startWatcher(current Prompt) error {
	watchCtx, cancel := context.WithCancel(context.Background())

	ch, err := c.social.Watch(watchCtx, current.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("bot: arm watcher: %w", err)
	}

	drained := make(chan struct{})
	c.mu.Lock()
	c.current = &current
	c.watching = true
	c.cancelWatch = cancel
	c.drained = drained
	c.mu.Unlock()

	fmt.Fprintf(c.out, "Watching replies to prompt %s\n", current.ID)

	go func() {
		defer close(drained)
		// One goroutine drains the stream, so replies are handled strictly
		// in arrival order and the ledger check-and-set stays sequential.
		for ev := range ch {
			c.HandleReply(watchCtx, ev)
		}
		c.mu.Lock()
		c.watching = false
		c.mu.Unlock()
	}()
	return nil
}

// stopWatcher tears down the active watcher and waits for the drain
// goroutine to exit. Idempotent when no watcher is active.
func (c *Controller) stopWatcher() error {
	c.mu.Lock()
	cancel := c.cancelWatch
	drained := c.drained
	c.cancelWatch = nil
	c.drained = nil
	c.mu.Unlock()

	err := c.social.StopWatch()
	if cancel != nil {
		cancel()
	}
	if drained != nil {
		<-drained
	}
	return err
}

// Close stops the watcher. Called on daemon shutdown.
func (c *Controller) Close() error {
	return c.stopWatcher()
}

// HandleReply processes one inbound reply. Safe to invoke more than once
// for the same event: a re-delivered event lands in the already-submitted
// or already-present branch instead of corrupting state, though the user
// may receive the notice twice.
func (c *Controller) HandleReply(ctx context.Context, ev ReplyEvent) {
	c.mu.Lock()
	self := c.self
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return
	}

	if !IsQualifyingReply(ev, self) {
		log.Printf("bot: tweet %s is not a direct reply, skipping", ev.ID)
		return
	}

	if c.ledger.HasSubmitted(ev.AuthorID) {
		log.Printf("bot: duplicate suggestion from @%s", ev.AuthorHandle)
		c.reply(ctx, msgAlreadyToday, ev.ID)
		return
	}

	proposal := strings.TrimSpace(strings.Replace(ev.Text, "@"+current.AuthorHandle, "", 1))

	track, err := c.resolver.Resolve(ctx, proposal)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			// No record is written, so the user stays free to retry today.
			log.Printf("bot: no catalog match for %q from @%s", proposal, ev.AuthorHandle)
			return
		}
		log.Printf("bot: resolve %q: %v", proposal, err)
		return
	}

	outcome, err := c.gate.TryAppend(ctx, track)
	if err != nil {
		log.Printf("bot: append %s: %v", track.URI, err)
		return
	}

	switch outcome {
	case Added:
		c.ledger.Record(ev.AuthorID, proposal)
		c.archive(ctx, ev, *current, proposal, track)
		c.reply(ctx, msgAdded, ev.ID)
		fmt.Fprintf(c.out, "Added %q for @%s\n", proposal, ev.AuthorHandle)
	case AlreadyPresent:
		// The ledger is deliberately left alone: suggesting a song that is
		// already in the playlist does not use up the day's slot.
		log.Printf("bot: %q already in playlist, informed @%s", proposal, ev.AuthorHandle)
		c.reply(ctx, msgAlreadyInList, ev.ID)
	}
}

// reply sends a user-facing reply; a transport failure is logged, not
// retried, and the triggering event is otherwise finished.
func (c *Controller) reply(ctx context.Context, text, parentID string) {
	if err := c.social.Reply(ctx, text, parentID); err != nil {
		log.Printf("bot: reply to %s: %v", parentID, err)
	}
}

func (c *Controller) archive(ctx context.Context, ev ReplyEvent, current Prompt, proposal string, track Track) {
	if c.archiver == nil {
		return
	}
	sub := AcceptedSubmission{
		Day:          time.Now().In(c.loc).Format("2006-01-02"),
		PromptID:     current.ID,
		AuthorID:     ev.AuthorID,
		AuthorHandle: ev.AuthorHandle,
		Proposal:     proposal,
		TrackURI:     track.URI,
		TrackTitle:   track.Title,
		TrackArtist:  primaryArtist(track),
	}
	if err := c.archiver.Archive(ctx, sub); err != nil {
		log.Printf("bot: archive submission: %v", err)
	}
}

// Snapshot is a point-in-time view of the controller for the status
// endpoint.
type Snapshot struct {
	PromptID    string `json:"prompt_id"`
	PromptDate  string `json:"prompt_date"`
	Submissions int    `json:"submissions"`
	Watching    bool   `json:"watching"`
}

// Snapshot reports the current prompt, ledger size, and watcher state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Submissions: c.ledger.Len(),
		Watching:    c.watching,
	}
	if c.current != nil {
		s.PromptID = c.current.ID
		s.PromptDate = c.current.CreatedAt.In(c.loc).Format("2006-01-02")
	}
	return s
}

// sameDay reports whether a and b fall on the same calendar date in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
