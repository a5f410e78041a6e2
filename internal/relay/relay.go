// Package relay defines the transport surface the sync core consumes:
// live subscriptions with an end-of-stored-events marker, one-shot fetches,
// and publishing. The production transport is a relay pool maintained
// outside this module; Memory is the in-process implementation used for
// local development and tests.
package relay

import (
	"context"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// Subscription is a live, stoppable stream of events matching a filter.
//
// EndOfStored is signaled (closed) once after every event the transport had
// already stored has been delivered; live events keep flowing afterwards.
// After Stop, no further events are delivered, but events already buffered
// in the channel may still be drained by the consumer — consumers guard
// against acting on them (stale-subscription guard).
type Subscription interface {
	Events() <-chan nostr.Event
	EndOfStored() <-chan struct{}
	Stop()
}

// Transport is the relay collaborator interface.
type Transport interface {
	// Subscribe opens a live subscription. Stored matches arrive first,
	// then EndOfStored, then live matches as they are published.
	Subscribe(ctx context.Context, filter nostr.Filter) (Subscription, error)
	// FetchOne returns the single best stored match (latest wins), or nil.
	FetchOne(ctx context.Context, filter nostr.Filter) (*nostr.Event, error)
	// FetchMany returns stored matches, newest first, bounded by
	// filter.Limit when set.
	FetchMany(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error)
	// Publish stores an event and fans it out to matching subscriptions.
	Publish(ctx context.Context, event nostr.Event) error
}
