package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/openbookapp/openbook-sync/internal/config"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/service"
	"github.com/openbookapp/openbook-sync/internal/session"
	"github.com/openbookapp/openbook-sync/internal/signer/local"
)

// ProvideResolver provides the Open Library catalog resolver used by the
// bookstr importer.
func ProvideResolver(i do.Injector) (*service.OpenLibraryResolver, error) {
	return service.NewOpenLibraryResolver(""), nil
}

// SessionHandle wraps the signed-in session with shutdown capability.
type SessionHandle struct {
	*session.Session
}

// Shutdown implements do.Shutdownable.
func (h *SessionHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideSession provides the signed-in session and starts its
// background grant listener.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	kv := do.MustInvoke[*KVHandle](i)
	sgn := do.MustInvoke[*local.Signer](i)
	transport := do.MustInvoke[relay.Transport](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	resolver := do.MustInvoke[*service.OpenLibraryResolver](i)

	sess, err := session.Open(context.Background(), session.Options{
		Signer:        sgn,
		Transport:     transport,
		KV:            kv.Badger,
		Indexer:       index.Index,
		Resolver:      resolver,
		GrantLookback: time.Duration(cfg.Grant.LookbackSeconds) * time.Second,
		FeedLimit:     cfg.Feed.Limit,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	return &SessionHandle{Session: sess}, nil
}
