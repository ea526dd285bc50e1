package sinkmatch

import (
	"fmt"

	"go.uber.org/zap"
)

// Manager is the main entity managing access to all sub-components. It wires
// the matching engine, the device cache, the enrichment pipeline and the
// rematch workflow over the injected collaborators, and is the sole public
// surface of the package besides ResolveSinkName and ClassifyMatch.
//
// All operations are synchronous; the Manager schedules nothing on its own.
// Wrapping calls with a deadline or a periodic trigger is the caller's
// concern.
type Manager struct {
	logger *zap.SugaredLogger

	backend  Backend
	registry SinkRegistry
	store    ConfigStore

	enricher  *enricher
	cache     *deviceCache
	rematcher *rematcher
}

// NewManager creates a Manager instance over the given collaborators
func NewManager(logger *zap.SugaredLogger, backend Backend, registry SinkRegistry, store ConfigStore) (*Manager, error) {
	logger = logger.Named("sinkmatch")

	if backend == nil || registry == nil || store == nil {
		return nil, fmt.Errorf("create manager: all collaborators are required")
	}

	enricher := newEnricher(logger, backend, registry, store)

	m := &Manager{
		logger:    logger,
		backend:   backend,
		registry:  registry,
		store:     store,
		enricher:  enricher,
		cache:     newDeviceCache(logger, backend, enricher),
		rematcher: newRematcher(logger, backend, store),
	}

	logger.Debug("Created manager instance")

	return m, nil
}

// MatchAllDevices re-resolves every persisted device record against a fresh
// backend snapshot and updates records whose handle changed. Returns one
// MatchResult per record.
func (m *Manager) MatchAllDevices() ([]MatchResult, error) {
	return m.rematcher.matchAllDevices()
}

// UpdatePlayerDevices runs a full rematch and rebinds players whose target
// device was renamed, persisting players and devices once if anything
// changed. Returns the names of the rebound players.
func (m *Manager) UpdatePlayerDevices() ([]string, error) {
	return m.rematcher.updatePlayerDevices()
}

// EnrichedDevices returns the enriched output device list, served from the
// TTL cache when fresh.
func (m *Manager) EnrichedDevices() ([]LiveDevice, error) {
	return m.cache.getEnrichedDevices()
}

// EnrichedDevice resolves and enriches a single handle via the backend or,
// failing that, the custom sink registry. Returns (nil, nil) when neither
// knows it.
func (m *Manager) EnrichedDevice(sinkName string) (*LiveDevice, error) {
	return m.enricher.enrichedDevice(sinkName)
}

// InvalidateCache drops the cached device list; the next read rebuilds it
// regardless of the TTL window.
func (m *Manager) InvalidateCache() {
	m.cache.invalidate()
}

// Release closes the backend and registry connections
func (m *Manager) Release() error {
	if err := m.backend.Release(); err != nil {
		return fmt.Errorf("release backend: %w", err)
	}

	if err := m.registry.Release(); err != nil {
		return fmt.Errorf("release sink registry: %w", err)
	}

	m.logger.Debug("Released manager instance")

	return nil
}
