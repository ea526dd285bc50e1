package sinkmatch

// Backend represents an entity that can enumerate the audio server's current
// output devices. Enumeration may be slow (an implementation can shell out or
// round-trip a native protocol); callers must not assume it returns quickly.
// A missing handle is reported as (nil, nil), never as an error.
type Backend interface {
	ListOutputDevices() ([]LiveDevice, error)
	GetDevice(sinkName string) (*LiveDevice, error)

	Release() error
}

// SinkRegistry represents an entity that knows about virtual sinks (combine,
// remap and the like) with their own naming and lifecycle state.
type SinkRegistry interface {
	ListSinks() ([]CustomSink, error)
	GetSink(sinkName string) (*CustomSink, error)

	Release() error
}

// ConfigStore owns the persisted device and player records. The core never
// persists on its own; all mutation and saving goes through the store.
type ConfigStore interface {
	// Devices returns the persisted device records keyed by logical device key.
	Devices() map[string]DeviceRecord

	// Players returns the persisted player records keyed by player name.
	Players() map[string]PlayerRecord

	// DeviceBySinkName returns the persisted record whose last-known handle
	// matches the given sink name, or nil if no record points there.
	DeviceBySinkName(sinkName string) *DeviceRecord

	// UpdateDeviceInfo overwrites a record's identifiers and handle from a
	// live device, without saving.
	UpdateDeviceInfo(deviceKey string, dev LiveDevice)

	// UpdatePlayerDevice rewrites a player's target handle, optionally saving
	// the player set immediately.
	UpdatePlayerDevice(name string, sinkName string, save bool) error

	// Save persists the player records.
	Save() error

	// SaveDevices persists the device records.
	SaveDevices() error
}

// Notifier represents an entity that can display a notification to the user
type Notifier interface {
	Notify(title string, message string)
}
