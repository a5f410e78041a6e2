// Package providers contains dependency injection providers for the sync
// daemon.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/openbookapp/openbook-sync/internal/config"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/search"
	"github.com/openbookapp/openbook-sync/internal/signer/local"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	log.Info("starting openbook sync",
		"environment", cfg.App.Environment,
		"data_path", cfg.Storage.DataPath,
		"relays", len(cfg.Relay.URLs),
	)
	return log, nil
}

// KVHandle wraps the persistent store with shutdown capability.
type KVHandle struct {
	*storage.Badger
}

// Shutdown implements do.Shutdownable.
func (h *KVHandle) Shutdown() error {
	return h.Close()
}

// ProvideKV provides the persistent key-value store.
func ProvideKV(i do.Injector) (*KVHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	kv, err := storage.OpenBadger(cfg.Storage.DataPath, log.Logger)
	if err != nil {
		return nil, err
	}
	return &KVHandle{Badger: kv}, nil
}

// ProvideSigner provides the local file-backed identity.
func ProvideSigner(i do.Injector) (*local.Signer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	sgn, err := local.LoadOrGenerate(cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}
	log.Info("identity loaded", "pubkey", sgn.PublicKey())
	return sgn, nil
}

// ProvideTransport provides the event transport. The daemon currently
// runs against the in-process relay; a relay-pool transport plugs in
// behind the same interface.
func ProvideTransport(i do.Injector) (relay.Transport, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return relay.NewMemory(relay.Options{
		PublishRPS:   cfg.Relay.PublishRPS,
		PublishBurst: cfg.Relay.PublishBurst,
		Logger:       log.Logger,
	}), nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve index over reconciled metadata.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.New(search.Options{
		DataPath: cfg.Storage.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{Index: index}, nil
}
