package sinkmatch

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	// placeholder capabilities for devices synthesized from a custom sink,
	// which carries no hardware-reported format of its own
	defaultSinkChannels   = 2
	defaultSinkSampleRate = 44100
)

// enricher overlays user-facing attributes onto raw device snapshots.
// Two independent overlay steps, later one wins on overlapping fields:
// first the custom sink (name, sink type), then the persisted record matched
// by handle (alias, hidden). The backend itself never fills enrichment
// fields.
type enricher struct {
	logger *zap.SugaredLogger

	backend  Backend
	registry SinkRegistry
	store    ConfigStore
}

func newEnricher(logger *zap.SugaredLogger, backend Backend, registry SinkRegistry, store ConfigStore) *enricher {
	return &enricher{
		logger:   logger.Named("enrich"),
		backend:  backend,
		registry: registry,
		store:    store,
	}
}

// enrich applies both overlays against a pre-fetched set of loaded sinks.
// Devices known to neither source keep backend defaults (no alias, visible).
func (e *enricher) enrich(dev LiveDevice, loadedSinks []CustomSink) LiveDevice {
	for _, sink := range loadedSinks {
		if equalFold(sink.SinkName, dev.ID) {
			// preserve the user-facing name chosen when the sink was created
			dev = dev.WithName(sink.Name).WithSinkType(sink.Type)
			break
		}
	}

	if rec := e.store.DeviceBySinkName(dev.ID); rec != nil {
		dev = dev.WithOverlay(*rec)
	}

	return dev
}

// enrichedDevice resolves a single handle: the backend first, then the sink
// registry with a synthesized placeholder device. Returns (nil, nil) when
// neither source knows the handle.
func (e *enricher) enrichedDevice(sinkName string) (*LiveDevice, error) {
	dev, err := e.backend.GetDevice(sinkName)
	if err != nil {
		return nil, fmt.Errorf("get device from backend: %w", err)
	}

	if dev == nil {
		sink, err := e.registry.GetSink(sinkName)
		if err != nil {
			return nil, fmt.Errorf("get custom sink: %w", err)
		}

		if sink == nil || sink.State != SinkStateLoaded {
			e.logger.Debugw("Handle not known to backend or sink registry", "sinkName", sinkName)
			return nil, nil
		}

		synthesized := synthesizeSinkDevice(*sink)
		dev = &synthesized
	}

	loadedSinks, err := e.loadedSinks()
	if err != nil {
		return nil, err
	}

	enriched := e.enrich(*dev, loadedSinks)

	return &enriched, nil
}

func (e *enricher) loadedSinks() ([]CustomSink, error) {
	sinks, err := e.registry.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("list custom sinks: %w", err)
	}

	loaded := []CustomSink{}

	for _, sink := range sinks {
		if sink.State == SinkStateLoaded {
			loaded = append(loaded, sink)
		}
	}

	return loaded, nil
}

// synthesizeSinkDevice builds a minimal LiveDevice for a custom sink the
// backend doesn't report. Capabilities are placeholders: the sink's own
// channel count when it has one, a stereo default otherwise, and a fixed
// default sample rate. The identifier snapshot only tags the sink type so
// the device is recognizable as virtual downstream.
func synthesizeSinkDevice(sink CustomSink) LiveDevice {
	channels := sink.Channels
	if channels == 0 {
		channels = defaultSinkChannels
	}

	return LiveDevice{
		ID:         sink.SinkName,
		Name:       sink.Name,
		Channels:   channels,
		SampleRate: defaultSinkSampleRate,
		Identifiers: &DeviceIdentifiers{
			Serial: fmt.Sprintf("sinkmatch-%s-sink", sink.Type),
		},
		SinkType: sink.Type,
	}
}
