package grant

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/openbookapp/openbook-sync/internal/bus"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/signer"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

// watermarkKey stores the last processed DM timestamp so restarts resume
// where the previous session stopped instead of rescanning history.
const watermarkKey = "openbook_last_dm_check"

// DefaultLookback is how far back the first ever scan reaches when no
// watermark exists yet.
const DefaultLookback = 3600 * time.Second

// Listener watches the DM stream for shelf-access grants addressed to the
// local identity and stores the keys they carry. Decryption and parse
// failures are expected (most DMs are not grants) and stay silent.
type Listener struct {
	signer    signer.Signer
	keys      *keystore.Store
	kv        storage.KV
	transport relay.Transport
	topics    *bus.Topics
	log       *logger.Logger
	lookback  time.Duration
	now       func() int64

	mu      sync.Mutex
	done    chan struct{}
	sub     relay.Subscription
	started bool
}

// NewListener creates a grant listener. A zero lookback falls back to
// DefaultLookback.
func NewListener(sgn signer.Signer, keys *keystore.Store, kv storage.KV, transport relay.Transport, topics *bus.Topics, lookback time.Duration, log *logger.Logger) *Listener {
	if log == nil {
		log = logger.Discard()
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Listener{
		signer:    sgn,
		keys:      keys,
		kv:        kv,
		transport: transport,
		topics:    topics,
		log:       log,
		lookback:  lookback,
		now:       func() int64 { return time.Now().Unix() },
	}
}

// Start subscribes to grant DMs addressed to the local identity, from the
// persisted watermark onward, and processes them in the background until
// Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return domainerrors.Conflict("grant listener already started")
	}

	since := l.watermark()
	if since == 0 {
		since = l.now() - int64(l.lookback/time.Second)
	}

	sub, err := l.transport.Subscribe(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindGrantDM},
		Tags:  map[string][]string{"p": {l.signer.PublicKey()}},
		Since: since,
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to subscribe to grant DMs")
	}

	l.sub = sub
	l.done = make(chan struct{})
	l.started = true
	go l.run(sub, l.done)

	l.log.Info("grant listener started", "since", since)
	return nil
}

// Stop tears the listener down. Safe to call before Start or twice.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return
	}
	close(l.done)
	l.sub.Stop()
	l.started = false
}

func (l *Listener) run(sub relay.Subscription, done <-chan struct{}) {
	// Highest timestamp observed among delivered candidates. The
	// watermark advances past observed events, not just decrypted ones:
	// a foreign DM fails decryption again harmlessly if it were ever
	// replayed, while a skipped legitimate grant would be lost.
	var maxObserved int64
	eose := sub.EndOfStored()

	for {
		select {
		case <-done:
			return
		case <-eose:
			l.advanceWatermark(maxObserved)
			eose = nil
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if e.CreatedAt > maxObserved {
				maxObserved = e.CreatedAt
			}
			l.process(e)
			if eose == nil {
				// Initial batch already complete; keep the watermark
				// current for live grants.
				l.advanceWatermark(maxObserved)
			}
		}
	}
}

// process handles one candidate DM. Everything that can go wrong here is
// expected for messages not meant for us, so failures only log at debug.
func (l *Listener) process(e nostr.Event) {
	if e.PubKey == l.signer.PublicKey() {
		return
	}
	if e.Tags.Value("t") != Marker {
		return
	}

	plain, err := l.signer.DecryptFrom(e.PubKey, e.Content)
	if err != nil {
		l.log.Debug("grant candidate failed to decrypt", "sender", e.PubKey, "error", err)
		return
	}

	var pl payload
	if err := json.Unmarshal([]byte(plain), &pl); err != nil || pl.Type != payloadType {
		l.log.Debug("grant candidate carried unexpected payload", "sender", e.PubKey)
		return
	}
	if _, err := pl.ShelfKey.Bytes(); err != nil {
		l.log.Debug("grant carried unusable key material", "sender", e.PubKey, "error", err)
		return
	}

	if err := l.keys.StoreReceivedKey(e.PubKey, pl.ShelfKey); err != nil {
		l.log.Warn("failed to store granted shelf key", "sender", e.PubKey, "error", err)
		return
	}

	l.log.Info("shelf key received", "owner", e.PubKey)
	if l.topics != nil {
		l.topics.KeyReceived.Publish(bus.KeyReceived{Owner: e.PubKey})
	}
}

// watermark returns the persisted high-water mark, or 0 when absent or
// unreadable.
func (l *Listener) watermark() int64 {
	raw, err := l.kv.Get(watermarkKey)
	if err != nil {
		return 0
	}
	mark, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.log.Warn("discarding corrupt DM watermark", "value", raw)
		return 0
	}
	return mark
}

// advanceWatermark persists maxObserved+1, moving only forward so a
// replayed batch or restart never reprocesses completed history.
func (l *Listener) advanceWatermark(maxObserved int64) {
	if maxObserved == 0 {
		return
	}
	next := maxObserved + 1
	if next <= l.watermark() {
		return
	}
	if err := l.kv.Set(watermarkKey, strconv.FormatInt(next, 10)); err != nil {
		l.log.Warn("failed to persist DM watermark", "error", err)
	}
}
