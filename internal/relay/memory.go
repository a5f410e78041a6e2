package relay

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/id"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/ratelimit"
)

const subscriptionBuffer = 100

// Memory is an in-process Transport. It applies the same replaceable-event
// semantics a relay does: a newer event evicts the older holder of its
// address, an older duplicate is accepted but never stored.
type Memory struct {
	mu      sync.RWMutex
	events  []nostr.Event
	byID    map[string]struct{}
	subs    map[string]*memorySub
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// Options configures a Memory relay.
type Options struct {
	// PublishRPS / PublishBurst bound publishes per author. Zero disables
	// rate limiting.
	PublishRPS   float64
	PublishBurst int
	Logger       *slog.Logger
}

// NewMemory creates an empty in-process relay.
func NewMemory(opts Options) *Memory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Memory{
		byID:   make(map[string]struct{}),
		subs:   make(map[string]*memorySub),
		logger: logger,
	}
	if opts.PublishRPS > 0 {
		m.limiter = ratelimit.New(opts.PublishRPS, max(opts.PublishBurst, 1))
	}
	return m
}

type memorySub struct {
	id     string
	filter nostr.Filter
	events chan nostr.Event
	eose   chan struct{}
	done   chan struct{}
	once   sync.Once
	parent *Memory
}

func (s *memorySub) Events() <-chan nostr.Event  { return s.events }
func (s *memorySub) EndOfStored() <-chan struct{} { return s.eose }

func (s *memorySub) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.parent.mu.Lock()
		delete(s.parent.subs, s.id)
		s.parent.mu.Unlock()
	})
}

// Subscribe delivers stored matches, signals end-of-stored, then streams
// live matches until Stop or context cancellation.
func (m *Memory) Subscribe(ctx context.Context, filter nostr.Filter) (Subscription, error) {
	sub := &memorySub{
		id:     id.MustGenerate("sub"),
		filter: filter,
		events: make(chan nostr.Event, subscriptionBuffer),
		eose:   make(chan struct{}),
		done:   make(chan struct{}),
		parent: m,
	}

	m.mu.Lock()
	stored := m.matchesLocked(filter)
	m.subs[sub.id] = sub
	m.mu.Unlock()

	go func() {
		for _, ev := range stored {
			select {
			case sub.events <- ev:
			case <-sub.done:
				return
			case <-ctx.Done():
				sub.Stop()
				return
			}
		}
		close(sub.eose)
	}()

	// Tie the subscription to the caller's context.
	go func() {
		select {
		case <-ctx.Done():
			sub.Stop()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// FetchOne returns the best stored match: maximum createdAt, ties broken by
// the smaller event id.
func (m *Memory) FetchOne(_ context.Context, filter nostr.Filter) (*nostr.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *nostr.Event
	for i := range m.events {
		ev := m.events[i]
		if !filter.Matches(ev) {
			continue
		}
		if best == nil || ev.Supersedes(*best) {
			best = &ev
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// FetchMany returns stored matches, newest first, respecting filter.Limit.
func (m *Memory) FetchMany(_ context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	m.mu.RLock()
	matched := m.matchesLocked(filter)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Supersedes(matched[j]) })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Publish stores the event and fans it out to matching live subscriptions.
// Redelivery of a known id is a successful no-op. A superseded replaceable
// event is accepted but neither stored nor fanned out.
func (m *Memory) Publish(_ context.Context, event nostr.Event) error {
	if err := event.Finalize(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTransport, "finalize event")
	}
	if m.limiter != nil && !m.limiter.Allow(event.PubKey) {
		return domainerrors.Transportf("publish rate exceeded for %s", event.PubKey)
	}

	m.mu.Lock()
	if _, seen := m.byID[event.ID]; seen {
		m.mu.Unlock()
		return nil
	}

	if addr := event.Address(); addr != "" {
		for i := range m.events {
			if m.events[i].Address() != addr {
				continue
			}
			if m.events[i].Supersedes(event) {
				// Older than what we hold: accept and discard.
				m.mu.Unlock()
				return nil
			}
			m.events = append(m.events[:i], m.events[i+1:]...)
			break
		}
	}

	m.events = append(m.events, event)
	m.byID[event.ID] = struct{}{}

	subs := make([]*memorySub, 0, len(m.subs))
	for _, s := range m.subs {
		if s.filter.Matches(event) {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- event:
		case <-s.done:
		default:
			m.logger.Warn("dropped event for slow subscription",
				slog.String("sub_id", s.id),
				slog.String("event_id", event.ID))
		}
	}
	return nil
}

// matchesLocked returns stored matches in arrival order. Callers hold m.mu.
func (m *Memory) matchesLocked(filter nostr.Filter) []nostr.Event {
	var out []nostr.Event
	for _, ev := range m.events {
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}
