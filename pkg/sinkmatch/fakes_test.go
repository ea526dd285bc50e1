package sinkmatch

import (
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// fakeBackend serves a scripted device snapshot and counts enumerations so
// cache tests can assert how often the backend was actually hit.
type fakeBackend struct {
	devices   []LiveDevice
	listCalls int
}

func (b *fakeBackend) ListOutputDevices() ([]LiveDevice, error) {
	b.listCalls++

	snapshot := make([]LiveDevice, len(b.devices))
	copy(snapshot, b.devices)

	return snapshot, nil
}

func (b *fakeBackend) GetDevice(sinkName string) (*LiveDevice, error) {
	for _, dev := range b.devices {
		if equalFold(dev.ID, sinkName) {
			found := dev
			return &found, nil
		}
	}

	return nil, nil
}

func (b *fakeBackend) Release() error { return nil }

type fakeRegistry struct {
	sinks []CustomSink
}

func (r *fakeRegistry) ListSinks() ([]CustomSink, error) {
	snapshot := make([]CustomSink, len(r.sinks))
	copy(snapshot, r.sinks)

	return snapshot, nil
}

func (r *fakeRegistry) GetSink(sinkName string) (*CustomSink, error) {
	for _, sink := range r.sinks {
		if equalFold(sink.SinkName, sinkName) {
			found := sink
			return &found, nil
		}
	}

	return nil, nil
}

func (r *fakeRegistry) Release() error { return nil }

// memStore is an in-memory ConfigStore that records how often each
// persistence call happened.
type memStore struct {
	devices map[string]DeviceRecord
	players map[string]PlayerRecord

	saveCalls        int
	saveDevicesCalls int
}

func newMemStore() *memStore {
	return &memStore{
		devices: map[string]DeviceRecord{},
		players: map[string]PlayerRecord{},
	}
}

func (s *memStore) Devices() map[string]DeviceRecord {
	devices := make(map[string]DeviceRecord, len(s.devices))
	for deviceKey, rec := range s.devices {
		devices[deviceKey] = rec
	}

	return devices
}

func (s *memStore) Players() map[string]PlayerRecord {
	players := make(map[string]PlayerRecord, len(s.players))
	for name, player := range s.players {
		players[name] = player
	}

	return players
}

func (s *memStore) DeviceBySinkName(sinkName string) *DeviceRecord {
	for _, rec := range s.devices {
		if equalFold(rec.SinkName, sinkName) {
			found := rec
			return &found
		}
	}

	return nil
}

func (s *memStore) UpdateDeviceInfo(deviceKey string, dev LiveDevice) {
	rec := s.devices[deviceKey]
	rec.Key = deviceKey
	s.devices[deviceKey] = rec.WithIdentifiers(dev.Identifiers).WithSinkName(dev.ID)
}

func (s *memStore) UpdatePlayerDevice(name string, sinkName string, save bool) error {
	player := s.players[name]
	player.Name = name
	player.Device = sinkName
	s.players[name] = player

	if save {
		return s.Save()
	}

	return nil
}

func (s *memStore) Save() error {
	s.saveCalls++
	return nil
}

func (s *memStore) SaveDevices() error {
	s.saveDevicesCalls++
	return nil
}
