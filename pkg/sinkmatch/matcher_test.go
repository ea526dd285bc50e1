package sinkmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(serial, busPath, vendorID, productID, alsaName string) *DeviceIdentifiers {
	return &DeviceIdentifiers{
		Serial:           serial,
		BusPath:          busPath,
		VendorID:         vendorID,
		ProductID:        productID,
		ALSALongCardName: alsaName,
	}
}

func TestResolveSinkName(t *testing.T) {
	live := []LiveDevice{
		{ID: "alsa_output.usb-dac", Identifiers: ids("XYZ123", "usb-0:1.4", "0d8c", "0102", "USB DAC at usb-0:1.4")},
		{ID: "alsa_output.hdmi", Identifiers: ids("", "pci-0000:00:1f.3", "8086", "280b", "HDA Intel PCH")},
		{ID: "alsa_output.twin-a", Identifiers: ids("", "", "0d8c", "0014", "Twin DAC at usb-0:1.1")},
		{ID: "alsa_output.twin-b", Identifiers: ids("", "", "0d8c", "0014", "Twin DAC at usb-0:1.2")},
	}

	tests := []struct {
		name string
		rec  DeviceRecord
		want string
	}{
		{
			name: "serial wins regardless of other fields",
			rec:  DeviceRecord{Key: "dac", Identifiers: ids("XYZ123", "usb-9:9.9", "", "", ""), SinkName: "alsa_output.gone"},
			want: "alsa_output.usb-dac",
		},
		{
			name: "serial comparison is case-insensitive",
			rec:  DeviceRecord{Key: "dac", Identifiers: ids("xyz123", "", "", "", "")},
			want: "alsa_output.usb-dac",
		},
		{
			name: "bus path when serial absent",
			rec:  DeviceRecord{Key: "hdmi", Identifiers: ids("", "pci-0000:00:1f.3", "", "", "")},
			want: "alsa_output.hdmi",
		},
		{
			name: "non-matching serial falls through to bus path",
			rec:  DeviceRecord{Key: "hdmi", Identifiers: ids("NOPE", "pci-0000:00:1f.3", "", "", "")},
			want: "alsa_output.hdmi",
		},
		{
			name: "unique vendor product pair",
			rec:  DeviceRecord{Key: "hdmi", Identifiers: ids("", "", "8086", "280b", "")},
			want: "alsa_output.hdmi",
		},
		{
			name: "ambiguous vendor product with alsa name tie-break",
			rec:  DeviceRecord{Key: "twin", Identifiers: ids("", "", "0d8c", "0014", "Twin DAC at usb-0:1.2")},
			want: "alsa_output.twin-b",
		},
		{
			name: "ambiguous vendor product without alsa name stays unresolved",
			rec:  DeviceRecord{Key: "twin", Identifiers: ids("", "", "0d8c", "0014", "")},
			want: "",
		},
		{
			name: "vendor without product never matches",
			rec:  DeviceRecord{Key: "twin", Identifiers: ids("", "", "0d8c", "", "")},
			want: "",
		},
		{
			name: "exact handle as last resort",
			rec:  DeviceRecord{Key: "hdmi", SinkName: "alsa_output.hdmi"},
			want: "alsa_output.hdmi",
		},
		{
			name: "stale handle yields no match",
			rec:  DeviceRecord{Key: "gone", SinkName: "alsa_output.unplugged"},
			want: "",
		},
		{
			name: "unmatchable record yields no match without error",
			rec:  DeviceRecord{Key: "empty"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSinkName(tt.rec, live))
		})
	}
}

func TestResolveSinkNameEmptySnapshot(t *testing.T) {
	rec := DeviceRecord{Key: "dac", Identifiers: ids("XYZ123", "", "", "", ""), SinkName: "alsa_output.usb-dac"}

	assert.Equal(t, "", ResolveSinkName(rec, nil))
	assert.Equal(t, "", ResolveSinkName(rec, []LiveDevice{}))
}

func TestResolveSinkNameDuplicateSerials(t *testing.T) {
	// backend data-quality issue: first in enumeration order wins
	live := []LiveDevice{
		{ID: "alsa_output.first", Identifiers: ids("DUP", "", "", "", "")},
		{ID: "alsa_output.second", Identifiers: ids("DUP", "", "", "", "")},
	}

	rec := DeviceRecord{Key: "dup", Identifiers: ids("DUP", "", "", "", "")}

	assert.Equal(t, "alsa_output.first", ResolveSinkName(rec, live))
}

func TestClassifyMatch(t *testing.T) {
	dev := LiveDevice{
		ID:          "alsa_output.usb-dac",
		Identifiers: ids("XYZ123", "usb-0:1.4", "0d8c", "0102", "USB DAC at usb-0:1.4"),
	}

	tests := []struct {
		name string
		rec  DeviceRecord
		want MatchMethod
	}{
		{
			name: "serial explains the pairing first",
			rec:  DeviceRecord{Identifiers: ids("XYZ123", "usb-0:1.4", "0d8c", "0102", "")},
			want: MatchBySerial,
		},
		{
			name: "bus path when serial differs",
			rec:  DeviceRecord{Identifiers: ids("OTHER", "usb-0:1.4", "", "", "")},
			want: MatchByBusPath,
		},
		{
			name: "vendor product when stronger signals differ",
			rec:  DeviceRecord{Identifiers: ids("", "", "0d8c", "0102", "")},
			want: MatchByVendorProduct,
		},
		{
			name: "handle when no identifiers overlap",
			rec:  DeviceRecord{SinkName: "alsa_output.usb-dac"},
			want: MatchBySinkName,
		},
		{
			name: "nothing in common",
			rec:  DeviceRecord{Identifiers: ids("OTHER", "", "", "", ""), SinkName: "alsa_output.old"},
			want: MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMatch(tt.rec, dev))
		})
	}
}
