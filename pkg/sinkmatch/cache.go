package sinkmatch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// deviceCacheTTL bounds how often a read goes back to the backend. Device
// enumeration round-trips the PulseAudio native protocol and can be slow, so
// repeated UI-driven reads within a few seconds must not hammer it.
const deviceCacheTTL = time.Second * 10

// deviceCache memoizes the enriched device list for a fixed TTL window.
//
// One mutex covers both read and rebuild: concurrent callers during a cache
// miss serialize instead of each triggering its own backend enumeration,
// at the cost of cache-hit readers blocking while a miss is being served.
type deviceCache struct {
	logger *zap.SugaredLogger

	backend  Backend
	enricher *enricher

	// injectable for tests; the cache never reads the wall clock directly
	clock func() time.Time

	lock    sync.Mutex
	devices []LiveDevice
	expiry  time.Time
}

func newDeviceCache(logger *zap.SugaredLogger, backend Backend, enricher *enricher) *deviceCache {
	c := &deviceCache{
		logger:   logger.Named("cache"),
		backend:  backend,
		enricher: enricher,
		clock:    time.Now,
	}

	c.logger.Debug("Created device cache instance")

	return c
}

// getEnrichedDevices returns the cached enriched device list, rebuilding it
// from the backend and the sink registry when the TTL window has passed.
func (c *deviceCache) getEnrichedDevices() ([]LiveDevice, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.devices != nil && c.clock().Before(c.expiry) {
		return c.devices, nil
	}

	devices, err := c.rebuild()
	if err != nil {
		return nil, err
	}

	c.devices = devices
	c.expiry = c.clock().Add(deviceCacheTTL)

	return c.devices, nil
}

// invalidate drops the cached list without rebuilding; the next read
// rebuilds
func (c *deviceCache) invalidate() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.devices = nil
	c.expiry = time.Time{}

	c.logger.Debug("Device cache invalidated")
}

// rebuild fetches a fresh snapshot and enriches it. Must be called with the
// lock held. Custom sinks take precedence over the backend's view of the
// same handle, otherwise a combined sink would show up twice.
func (c *deviceCache) rebuild() ([]LiveDevice, error) {
	loadedSinks, err := c.enricher.loadedSinks()
	if err != nil {
		return nil, err
	}

	// handles are compared case-insensitively everywhere, the exclusion
	// set included
	sinkNames := make([]string, len(loadedSinks))
	for sinkIdx, sink := range loadedSinks {
		sinkNames[sinkIdx] = strings.ToLower(sink.SinkName)
	}

	backendDevices, err := c.backend.ListOutputDevices()
	if err != nil {
		return nil, fmt.Errorf("list output devices: %w", err)
	}

	devices := []LiveDevice{}

	// backend-derived devices first, custom sinks after
	for _, dev := range backendDevices {
		if funk.ContainsString(sinkNames, strings.ToLower(dev.ID)) {
			continue
		}

		devices = append(devices, c.enricher.enrich(dev, loadedSinks))
	}

	for _, sink := range loadedSinks {
		devices = append(devices, c.enricher.enrich(synthesizeSinkDevice(sink), loadedSinks))
	}

	c.logger.Debugw("Rebuilt device cache",
		"backendDevices", len(backendDevices),
		"customSinks", len(loadedSinks),
		"total", len(devices))

	return devices, nil
}
