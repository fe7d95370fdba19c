// Package emitter is the Go client SDK for the view telemetry pipeline. It
// mirrors the browser emitter's contract: a per-session state machine that
// reports page transitions, heartbeats, and a final session-end event, with
// retry/backoff on every send and a durable offline queue for events that
// could not be delivered.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/docpulse/docpulse/app/dto"
)

// Clock abstracts time so tests can pin page dwell measurements
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

const (
	pageViewPath        = "/api/v1/analytics/page-view"
	sessionEndPath      = "/api/v1/analytics/session-end"
	sessionActivityPath = "/api/v1/analytics/session-activity"

	// heartbeatAfter is how much total session time must pass before the
	// liveness tick starts, and the tick interval itself
	heartbeatAfter = 30 * time.Second
)

// Client sends telemetry events to the ingestion API
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    Backoff
	sleeper    Sleeper
	clock      Clock
	queue      *DurableQueue
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff overrides the retry schedule
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithSleeper overrides the backoff sleeper (tests)
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithClock overrides the dwell-time clock (tests)
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithQueue attaches a durable offline queue for events whose retries are
// exhausted. Without one, undeliverable events are dropped.
func WithQueue(q *DurableQueue) Option {
	return func(c *Client) { c.queue = q }
}

// NewClient creates a telemetry client for the given API base URL and
// opportunistically drains any events left queued by a previous run
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		backoff:    DefaultBackoff,
		sleeper:    realSleeper{},
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.queue != nil && c.queue.Len() > 0 {
		c.DrainQueue(context.Background())
	}

	return c
}

// DrainQueue retries delivery of previously queued events
func (c *Client) DrainQueue(ctx context.Context) error {
	if c.queue == nil {
		return nil
	}
	return c.queue.Drain(func(path string, payload json.RawMessage) error {
		return c.post(ctx, path, payload)
	})
}

// send delivers one event with the full retry schedule, parking it in the
// durable queue when every attempt fails
func (c *Client) send(ctx context.Context, path string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = retry(c.backoff, c.sleeper, func() error {
		return c.post(ctx, path, payload)
	})
	if err == nil {
		return nil
	}

	if c.queue != nil {
		if qErr := c.queue.Enqueue(QueuedEvent{Path: path, Payload: payload}); qErr != nil {
			return fmt.Errorf("send failed and queueing failed: %w", qErr)
		}
	}
	return err
}

func (c *Client) post(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// 4xx is terminal: the event is malformed or rejected, retrying or
	// queueing it cannot succeed later
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry http status: %d", resp.StatusCode)
	}
	return nil
}

// Session state machine states
type sessionState int

const (
	statePageActive sessionState = iota
	stateEnding
	stateTerminated
)

// Session tracks one viewing session's local state: the page currently
// active, when it became active, and the running totals reported at
// session end.
type Session struct {
	mu sync.Mutex

	client    *Client
	shareID   string
	sessionID string

	state        sessionState
	currentPage  int
	totalPages   int
	pageSince    time.Time
	startedAt    time.Time
	pagesVisited map[int]struct{}
	maxPage      int
	emittedEntry bool

	stopHeartbeat func()
}

// OpenSession begins tracking a session opened through the access gate.
// Report the first page with PageChanged; that call emits the zero-duration
// entry marker.
func (c *Client) OpenSession(shareID, sessionID string, totalPages int) *Session {
	now := c.clock.Now()
	s := &Session{
		client:       c,
		shareID:      shareID,
		sessionID:    sessionID,
		state:        statePageActive,
		totalPages:   totalPages,
		startedAt:    now,
		pagesVisited: make(map[int]struct{}),
	}
	return s
}

// PageChanged reports that a page became active. The emitted event carries
// the dwell time of the page being left; the session's very first event
// carries zero because no page was left.
func (s *Session) PageChanged(ctx context.Context, page int) error {
	s.mu.Lock()
	if s.state != statePageActive {
		s.mu.Unlock()
		return fmt.Errorf("session is no longer active")
	}

	now := s.client.clock.Now()

	var duration int64
	if s.emittedEntry {
		duration = now.Sub(s.pageSince).Milliseconds()
	}
	s.emittedEntry = true

	event := &dto.PageViewEvent{
		ShareID:    s.shareID,
		SessionID:  s.sessionID,
		Page:       page,
		TotalPages: s.totalPages,
		DurationMS: duration,
	}

	s.currentPage = page
	s.pageSince = now
	s.pagesVisited[page] = struct{}{}
	if page > s.maxPage {
		s.maxPage = page
	}
	s.mu.Unlock()

	return s.client.send(ctx, pageViewPath, event)
}

// Activity sends the heartbeat that keeps the session marked active
func (s *Session) Activity(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateTerminated {
		s.mu.Unlock()
		return nil
	}
	page := s.currentPage
	s.mu.Unlock()

	event := &dto.SessionActivityEvent{SessionID: s.sessionID}
	if page > 0 {
		event.CurrentPage = &page
	}
	return s.client.send(ctx, sessionActivityPath, event)
}

// StartHeartbeat launches the liveness tick: once total session time
// exceeds the threshold, a heartbeat fires every tick until stopped.
// The returned stop function is idempotent.
func (s *Session) StartHeartbeat(ctx context.Context) func() {
	hbCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(heartbeatAfter)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if s.client.clock.Now().Sub(s.startedAt) < heartbeatAfter {
					continue
				}
				_ = s.Activity(hbCtx)
			}
		}
	}()

	s.mu.Lock()
	s.stopHeartbeat = cancel
	s.mu.Unlock()
	return cancel
}

// End terminates the session and emits the session-end event with final
// totals. Termination signals are unreliable in the wild, so calling End
// more than once is tolerated: later calls re-send with the same totals and
// the server treats the last write as authoritative.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.state == statePageActive {
		s.state = stateEnding
	}
	if s.stopHeartbeat != nil {
		s.stopHeartbeat()
	}

	now := s.client.clock.Now()
	event := &dto.SessionEndEvent{
		ShareID:         s.shareID,
		SessionID:       s.sessionID,
		DurationSeconds: int64(now.Sub(s.startedAt).Seconds()),
		PagesViewed:     len(s.pagesVisited),
		TotalPages:      s.totalPages,
		MaxPageReached:  s.maxPage,
	}
	s.state = stateTerminated
	s.mu.Unlock()

	return s.client.send(ctx, sessionEndPath, event)
}
