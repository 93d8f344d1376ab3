package observer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/platform/retry"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// Item is one document returned by a baseline fetch.
type Item struct {
	ID   string
	Data json.RawMessage
}

// Fetcher loads the full current contents of a resource from the record
// store. The event stream is only a latency optimization over this.
type Fetcher interface {
	Fetch(ctx context.Context, resource string) ([]Item, error)
}

// Subscriber maintains a dashboard's State against the live stream:
// subscribe, baseline-fetch, reduce each frame, re-fetch what the reducer
// flags, and reconnect with the view marked stale in between.
type Subscriber struct {
	streamURL string
	fetcher   Fetcher
	client    *http.Client
	clock     clockwork.Clock
	backoff   time.Duration
	onChange  func(State)

	mu    sync.Mutex
	state State
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

func WithHTTPClient(client *http.Client) SubscriberOption {
	return func(s *Subscriber) { s.client = client }
}

func WithClock(clock clockwork.Clock) SubscriberOption {
	return func(s *Subscriber) { s.clock = clock }
}

// WithBackoff sets the delay between reconnection attempts.
func WithBackoff(backoff time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.backoff = backoff }
}

// WithOnChange registers a callback invoked with a snapshot after every
// state change. Used by views to re-render.
func WithOnChange(fn func(State)) SubscriberOption {
	return func(s *Subscriber) { s.onChange = fn }
}

func NewSubscriber(streamURL string, watch token.Scope, fetcher Fetcher, resources []string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		streamURL: streamURL,
		fetcher:   fetcher,
		client:    http.DefaultClient,
		clock:     clockwork.NewRealClock(),
		backoff:   2 * time.Second,
		state:     NewState(watch, resources...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run blocks until ctx is cancelled, reconnecting with a fixed backoff
// whenever the stream drops. While disconnected the state is stale.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if err := s.connectAndConsume(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Stream lost, reconnecting", "error", err, "backoff", s.backoff)
		}

		s.markStale()

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.backoff):
		}
	}
}

func (s *Subscriber) connectAndConsume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	// Connected: establish the baseline, then the view is fresh. Events
	// received before the baseline finishes are reduced on top of it, which
	// is safe because patches are idempotent against re-fetched truth.
	if err := s.baseline(ctx); err != nil {
		return fmt.Errorf("baseline fetch: %w", err)
	}
	s.clearStale()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				s.dispatch(ctx, data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

func (s *Subscriber) dispatch(ctx context.Context, payload string) {
	var ev event.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("Dropping undecodable frame", "error", err)
		return
	}

	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	pending := make([]string, 0, len(s.state.PendingRefetch))
	for resource := range s.state.PendingRefetch {
		pending = append(pending, resource)
	}
	s.mu.Unlock()

	for _, resource := range pending {
		if err := s.refetch(ctx, resource); err != nil {
			// Flag stays set; the next event or reconnect retries it.
			slog.Warn("Re-fetch failed", "resource", resource, "error", err)
		}
	}

	s.notify()
}

// baseline fetches every tracked resource once, retrying transient failures.
func (s *Subscriber) baseline(ctx context.Context) error {
	s.mu.Lock()
	resources := make([]string, 0, len(s.state.Items))
	for resource := range s.state.Items {
		resources = append(resources, resource)
	}
	s.mu.Unlock()

	for _, resource := range resources {
		if err := s.refetch(ctx, resource); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subscriber) refetch(ctx context.Context, resource string) error {
	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: 100 * time.Millisecond, Clock: s.clock}
	items, err := retry.Do(ctx, policy, func() ([]Item, error) {
		return s.fetcher.Fetch(ctx, resource)
	})
	if err != nil {
		return err
	}

	fresh := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		fresh[item.ID] = item.Data
	}

	s.mu.Lock()
	s.state = s.state.withItems(resource, fresh).withRefetch(resource, false)
	s.mu.Unlock()
	return nil
}

func (s *Subscriber) markStale() {
	s.mu.Lock()
	s.state.Stale = true
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) clearStale() {
	s.mu.Lock()
	s.state.Stale = false
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.State())
}
