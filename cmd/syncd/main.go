// Package main provides the entry point for the OpenBook sync daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/openbookapp/openbook-sync/internal/di"
	"github.com/openbookapp/openbook-sync/internal/di/providers"
	"github.com/openbookapp/openbook-sync/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap sync daemon: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")

	// Stop the session first so the grant listener releases its
	// subscription before the stores close underneath it.
	if sessHandle, err := do.Invoke[*providers.SessionHandle](injector); err == nil {
		if err := sessHandle.Shutdown(); err != nil {
			log.Error("Failed to close session", "error", err)
		}
	}

	// Shutdown remaining services in reverse order
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	if searchHandle, err := do.Invoke[*providers.SearchIndexHandle](injector); err == nil {
		if err := searchHandle.Shutdown(); err != nil {
			log.Error("Failed to close search index", "error", err)
		}
	}

	if kvHandle, err := do.Invoke[*providers.KVHandle](injector); err == nil {
		if err := kvHandle.Shutdown(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}

	log.Info("Sync daemon stopped")
}
