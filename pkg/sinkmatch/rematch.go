package sinkmatch

import (
	"fmt"

	"go.uber.org/zap"
)

// rematcher batch-resolves every persisted device record against the current
// device set and propagates handle renames into player bindings.
type rematcher struct {
	logger *zap.SugaredLogger

	backend Backend
	store   ConfigStore
}

func newRematcher(logger *zap.SugaredLogger, backend Backend, store ConfigStore) *rematcher {
	return &rematcher{
		logger:  logger.Named("rematch"),
		backend: backend,
		store:   store,
	}
}

// matchAllDevices resolves every persisted record via the cascade against a
// fresh backend snapshot. The TTL cache is deliberately bypassed here: a
// rematch decision taken on stale data would write stale handles back into
// the config. Changed handles are written through the store (without saving)
// and flagged Updated in the result. One MatchResult per record, match or
// not.
func (r *rematcher) matchAllDevices() ([]MatchResult, error) {
	live, err := r.backend.ListOutputDevices()
	if err != nil {
		return nil, fmt.Errorf("list output devices for rematch: %w", err)
	}

	results := []MatchResult{}

	for deviceKey, rec := range r.store.Devices() {
		result := MatchResult{
			DeviceKey:   deviceKey,
			OldSinkName: rec.SinkName,
			Method:      MatchNone,
		}

		if rec.Unmatchable() {
			r.logger.Debugw("Skipping unmatchable device record", "deviceKey", deviceKey)
			results = append(results, result)
			continue
		}

		sinkName := ResolveSinkName(rec, live)
		if sinkName == "" {
			r.logger.Debugw("No live device matches record", "deviceKey", deviceKey)
			results = append(results, result)
			continue
		}

		result.NewSinkName = sinkName

		for _, dev := range live {
			if !equalFold(dev.ID, sinkName) {
				continue
			}

			result.Method = ClassifyMatch(rec, dev)

			if !equalFold(rec.SinkName, sinkName) {
				r.logger.Infow("Device handle changed, updating record",
					"deviceKey", deviceKey,
					"oldSinkName", rec.SinkName,
					"newSinkName", sinkName,
					"method", result.Method)

				r.store.UpdateDeviceInfo(deviceKey, dev)
				result.Updated = true
			}

			break
		}

		results = append(results, result)
	}

	return results, nil
}

// updatePlayerDevices runs a full rematch and rebinds every player whose
// target handle was renamed. Persistence happens at most once per batch:
// players and devices are each saved once if anything changed, and not at
// all otherwise. Returns the names of the players that were rebound.
func (r *rematcher) updatePlayerDevices() ([]string, error) {
	results, err := r.matchAllDevices()
	if err != nil {
		return nil, fmt.Errorf("match all devices: %w", err)
	}

	renamed := map[string]string{}

	for _, result := range results {
		if result.Updated && result.OldSinkName != "" && result.NewSinkName != "" {
			renamed[result.OldSinkName] = result.NewSinkName
		}
	}

	updatedPlayers := []string{}

	for name, player := range r.store.Players() {
		newSinkName, ok := renamed[player.Device]
		if !ok {
			continue
		}

		r.logger.Infow("Rebinding player to renamed device",
			"player", name,
			"oldSinkName", player.Device,
			"newSinkName", newSinkName)

		if err := r.store.UpdatePlayerDevice(name, newSinkName, false); err != nil {
			return nil, fmt.Errorf("update player device (%s): %w", name, err)
		}

		updatedPlayers = append(updatedPlayers, name)
	}

	if len(updatedPlayers) > 0 {
		if err := r.store.Save(); err != nil {
			return nil, fmt.Errorf("save players after rebinding: %w", err)
		}

		if err := r.store.SaveDevices(); err != nil {
			return nil, fmt.Errorf("save devices after rebinding: %w", err)
		}
	}

	return updatedPlayers, nil
}
