// Package sinkmatch keeps persisted logical audio-output device records bound
// to the live PulseAudio sinks they describe, across reboots, USB re-plugs
// and sink reconfiguration.
package sinkmatch

import "strings"

// MatchMethod names the identity signal that explains a resolved pairing
// between a persisted device record and a live device.
type MatchMethod string

const (
	MatchBySerial        MatchMethod = "serial"
	MatchByBusPath       MatchMethod = "bus_path"
	MatchByVendorProduct MatchMethod = "vendor_product"
	MatchBySinkName      MatchMethod = "sink_name"
	MatchNone            MatchMethod = "none"
)

// DeviceIdentifiers describes the hardware-stable identity of an audio device,
// independent of whatever sink name PulseAudio currently assigns it.
// Every field is optional; comparisons are case-insensitive throughout.
type DeviceIdentifiers struct {
	Serial           string
	BusPath          string
	VendorID         string
	ProductID        string
	ALSALongCardName string
}

// Empty returns true if no identity signal is present at all.
func (ids *DeviceIdentifiers) Empty() bool {
	if ids == nil {
		return true
	}

	return ids.Serial == "" && ids.BusPath == "" && ids.VendorID == "" &&
		ids.ProductID == "" && ids.ALSALongCardName == ""
}

// DeviceRecord is a persisted logical device as the config store keeps it.
// Key is stable and chosen by the configuration layer; SinkName is the most
// recently resolved handle and is exactly the part that may go stale.
// A record with no identifiers and no sink name is unmatchable, which is a
// normal state rather than an error.
type DeviceRecord struct {
	Key         string
	Identifiers *DeviceIdentifiers
	SinkName    string
	Alias       string
	Hidden      bool
}

// Unmatchable reports whether the record carries no signal that could ever
// re-associate it with a live device.
func (r DeviceRecord) Unmatchable() bool {
	return r.Identifiers.Empty() && r.SinkName == ""
}

// WithSinkName returns a copy of the record pointing at the given handle.
func (r DeviceRecord) WithSinkName(sinkName string) DeviceRecord {
	r.SinkName = sinkName
	return r
}

// WithIdentifiers returns a copy of the record carrying the given identifier
// snapshot. The snapshot itself is copied so callers can't mutate it later.
func (r DeviceRecord) WithIdentifiers(ids *DeviceIdentifiers) DeviceRecord {
	if ids == nil {
		r.Identifiers = nil
		return r
	}

	snapshot := *ids
	r.Identifiers = &snapshot

	return r
}

// LiveDevice is an output device as the backend (or the custom sink registry)
// currently exposes it. Alias, Hidden and SinkType are enrichment fields:
// the backend never fills them in, only the enrichment pipeline does.
type LiveDevice struct {
	ID          string
	Name        string
	Channels    int
	SampleRate  int
	Identifiers *DeviceIdentifiers

	Alias    string
	Hidden   bool
	SinkType string
}

// WithName returns a copy with the display name replaced.
func (d LiveDevice) WithName(name string) LiveDevice {
	d.Name = name
	return d
}

// WithSinkType returns a copy with the sink type set.
func (d LiveDevice) WithSinkType(sinkType string) LiveDevice {
	d.SinkType = sinkType
	return d
}

// WithOverlay returns a copy carrying the alias and hidden flag of the given
// persisted record.
func (d LiveDevice) WithOverlay(rec DeviceRecord) LiveDevice {
	d.Alias = rec.Alias
	d.Hidden = rec.Hidden
	return d
}

// SinkState describes a custom sink's lifecycle state. Only loaded sinks
// participate in device enrichment.
type SinkState string

const (
	SinkStateLoaded   SinkState = "loaded"
	SinkStateUnloaded SinkState = "unloaded"
)

// CustomSink is a virtual (non-hardware) output such as a combined or
// remapped sink. SinkName doubles as its handle on the PulseAudio side.
type CustomSink struct {
	SinkName    string
	Name        string
	Description string
	Channels    int
	Type        string
	State       SinkState
}

// PlayerRecord binds a player to the output device handle it targets.
type PlayerRecord struct {
	Name   string
	Device string
}

// MatchResult reports the outcome of rematching one persisted record.
type MatchResult struct {
	DeviceKey   string
	OldSinkName string
	NewSinkName string
	Method      MatchMethod
	Updated     bool
}

// equalFold is the one string comparison used for identity signals and
// handles. PulseAudio proplists are not case-normalized, so we never rely on
// exact casing surviving a round trip through the config file.
func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
