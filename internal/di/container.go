// Package di provides dependency injection configuration for the sync
// daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/openbookapp/openbook-sync/internal/config"
	"github.com/openbookapp/openbook-sync/internal/di/providers"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/service"
	"github.com/openbookapp/openbook-sync/internal/signer/local"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideKV)
	do.Provide(injector, providers.ProvideSigner)

	// Transport and search
	do.Provide(injector, providers.ProvideTransport)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Catalog resolution
	do.Provide(injector, providers.ProvideResolver)

	// Session
	do.Provide(injector, providers.ProvideSession)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.KVHandle](injector)
	_ = do.MustInvoke[*local.Signer](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.OpenLibraryResolver](injector)
	_ = do.MustInvoke[*providers.SessionHandle](injector)

	return nil
}
