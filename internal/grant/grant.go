// Package grant implements the shelf-key exchange: the owner of a private
// shelf sends their symmetric key to a chosen reader inside an encrypted
// direct message, and a background listener on the reader's side picks
// grants out of the DM stream and stores the keys.
package grant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openbookapp/openbook-sync/internal/bus"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/signer"
)

// Marker is the discovery tag carried by every grant DM so listeners can
// filter candidates without decrypting unrelated messages.
const Marker = "openbook:shelf:grant"

const payloadType = "shelf-access-grant"

// payload is the cleartext carried inside the encrypted DM content.
type payload struct {
	Type     string               `json:"type"`
	ShelfKey keystore.KeyMaterial `json:"shelfKey"`
}

// Protocol sends shelf-access grants.
type Protocol struct {
	signer    signer.Signer
	keys      *keystore.Store
	transport relay.Transport
	topics    *bus.Topics
	log       *logger.Logger
	now       func() int64
}

// NewProtocol creates the sending half of the key exchange.
func NewProtocol(sgn signer.Signer, keys *keystore.Store, transport relay.Transport, topics *bus.Topics, log *logger.Logger) *Protocol {
	if log == nil {
		log = logger.Discard()
	}
	return &Protocol{
		signer:    sgn,
		keys:      keys,
		transport: transport,
		topics:    topics,
		log:       log,
		now:       func() int64 { return time.Now().Unix() },
	}
}

// SendGrant shares the caller's shelf key with recipient. The key is
// created on first use. The operation is atomic: a signer that cannot
// encrypt, or a failed encryption, aborts before anything is published.
func (p *Protocol) SendGrant(ctx context.Context, recipient string) error {
	if recipient == "" || recipient == p.signer.PublicKey() {
		return domainerrors.Validation("invalid grant recipient")
	}

	km, err := p.keys.GetOrCreateSelfKey()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload{Type: payloadType, ShelfKey: km})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to encode grant payload")
	}

	sealed, err := p.signer.EncryptFor(recipient, string(body))
	if err != nil {
		return err
	}

	event := nostr.Event{
		PubKey:    p.signer.PublicKey(),
		CreatedAt: p.now(),
		Kind:      nostr.KindGrantDM,
		Tags: nostr.Tags{
			{"p", recipient},
			{"t", Marker},
		},
		Content: sealed,
	}
	if err := p.signer.Sign(&event); err != nil {
		return err
	}

	if err := p.transport.Publish(ctx, event); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeTransport, "failed to publish grant to %s", recipient)
	}

	p.log.Info("shelf key granted", "recipient", recipient)
	if p.topics != nil {
		p.topics.GrantSent.Publish(bus.GrantSent{Recipient: recipient})
	}
	return nil
}
