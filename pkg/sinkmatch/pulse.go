package sinkmatch

import (
	"fmt"
	"net"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

// sink proplist keys carrying the hardware-stable identity signals
const (
	propDeviceSerial     = "device.serial"
	propDeviceBusPath    = "device.bus_path"
	propDeviceVendorID   = "device.vendor.id"
	propDeviceProductID  = "device.product.id"
	propALSALongCardName = "alsa.long_card_name"
	propDescription      = "device.description"
)

type paBackend struct {
	logger *zap.SugaredLogger

	client *proto.Client
	conn   net.Conn
}

// NewPulseBackend connects to the local PulseAudio server and returns a
// Backend enumerating its output sinks
func NewPulseBackend(logger *zap.SugaredLogger) (Backend, error) {
	client, conn, err := proto.Connect("")
	if err != nil {
		logger.Warnw("Failed to establish PulseAudio connection", "error", err)
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString("sinkmatch"),
		},
	}
	reply := proto.SetClientNameReply{}

	if err := client.Request(&request, &reply); err != nil {
		return nil, err
	}

	b := &paBackend{
		logger: logger.Named("backend"),
		client: client,
		conn:   conn,
	}

	b.logger.Debug("Created PA backend instance")

	return b, nil
}

func (b *paBackend) ListOutputDevices() ([]LiveDevice, error) {
	request := proto.GetSinkInfoList{}
	reply := proto.GetSinkInfoListReply{}

	if err := b.client.Request(&request, &reply); err != nil {
		b.logger.Warnw("Failed to get sink info list", "error", err)
		return nil, fmt.Errorf("get sink info list: %w", err)
	}

	devices := []LiveDevice{}

	for _, sink := range reply {
		if sink == nil {
			continue
		}

		devices = append(devices, liveDeviceFromSinkInfo(sink.SinkName, sink.SinkIndex,
			int(sink.Channels), int(sink.Rate), sink.Properties))
	}

	return devices, nil
}

func (b *paBackend) GetDevice(sinkName string) (*LiveDevice, error) {
	request := proto.GetSinkInfo{
		SinkIndex: proto.Undefined,
		SinkName:  sinkName,
	}
	reply := proto.GetSinkInfoReply{}

	if err := b.client.Request(&request, &reply); err != nil {
		// the protocol reports an unknown sink name as a request error, so a
		// lookup failure and a missing sink both resolve to not found here
		b.logger.Debugw("Sink lookup failed, treating as not found", "sinkName", sinkName, "error", err)
		return nil, nil
	}

	dev := liveDeviceFromSinkInfo(reply.SinkName, reply.SinkIndex,
		int(reply.Channels), int(reply.Rate), reply.Properties)

	return &dev, nil
}

func (b *paBackend) Release() error {
	if err := b.conn.Close(); err != nil {
		b.logger.Warnw("Failed to close PulseAudio connection", "error", err)
		return fmt.Errorf("close PulseAudio connection: %w", err)
	}

	b.logger.Debug("Released PA backend instance")

	return nil
}

func liveDeviceFromSinkInfo(sinkName string, sinkIndex uint32, channels int, rate int, props proto.PropList) LiveDevice {
	name := propString(props, propDescription)
	if name == "" {
		name = sinkName
	}

	if sinkName == "" {
		sinkName = fmt.Sprintf("Sink %d", sinkIndex)
	}

	ids := &DeviceIdentifiers{
		Serial:           propString(props, propDeviceSerial),
		BusPath:          propString(props, propDeviceBusPath),
		VendorID:         propString(props, propDeviceVendorID),
		ProductID:        propString(props, propDeviceProductID),
		ALSALongCardName: propString(props, propALSALongCardName),
	}

	if ids.Empty() {
		ids = nil
	}

	return LiveDevice{
		ID:          sinkName,
		Name:        name,
		Channels:    channels,
		SampleRate:  rate,
		Identifiers: ids,
	}
}

func propString(props proto.PropList, key string) string {
	if props == nil {
		return ""
	}

	if prop, ok := props[key]; ok {
		return prop.String()
	}

	return ""
}
