package sinkmatch

import (
	"fmt"
	"net"
	"strings"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

// drivers that mark a sink as one of ours rather than a hardware device.
// anything the server reports under these modules is a virtual sink.
var customSinkDrivers = map[string]string{
	"module-combine-sink.c": "combine",
	"module-remap-sink.c":   "remap",
	"module-null-sink.c":    "null",
}

type paSinkRegistry struct {
	logger *zap.SugaredLogger

	client *proto.Client
	conn   net.Conn
}

// NewPulseSinkRegistry connects to the local PulseAudio server and returns a
// SinkRegistry covering its combine/remap/null module sinks. Sinks the
// server currently reports are by definition loaded.
func NewPulseSinkRegistry(logger *zap.SugaredLogger) (SinkRegistry, error) {
	client, conn, err := proto.Connect("")
	if err != nil {
		logger.Warnw("Failed to establish PulseAudio connection", "error", err)
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString("sinkmatch-registry"),
		},
	}
	reply := proto.SetClientNameReply{}

	if err := client.Request(&request, &reply); err != nil {
		return nil, err
	}

	r := &paSinkRegistry{
		logger: logger.Named("registry"),
		client: client,
		conn:   conn,
	}

	r.logger.Debug("Created PA sink registry instance")

	return r, nil
}

func (r *paSinkRegistry) ListSinks() ([]CustomSink, error) {
	request := proto.GetSinkInfoList{}
	reply := proto.GetSinkInfoListReply{}

	if err := r.client.Request(&request, &reply); err != nil {
		r.logger.Warnw("Failed to get sink info list", "error", err)
		return nil, fmt.Errorf("get sink info list: %w", err)
	}

	sinks := []CustomSink{}

	for _, info := range reply {
		if info == nil {
			continue
		}

		sinkType, ok := customSinkDrivers[strings.ToLower(info.Driver)]
		if !ok {
			continue
		}

		sinks = append(sinks, customSinkFromInfo(info.SinkName, int(info.Channels), sinkType, info.Properties))
	}

	return sinks, nil
}

func (r *paSinkRegistry) GetSink(sinkName string) (*CustomSink, error) {
	sinks, err := r.ListSinks()
	if err != nil {
		return nil, err
	}

	for _, sink := range sinks {
		if equalFold(sink.SinkName, sinkName) {
			found := sink
			return &found, nil
		}
	}

	return nil, nil
}

func (r *paSinkRegistry) Release() error {
	if err := r.conn.Close(); err != nil {
		r.logger.Warnw("Failed to close PulseAudio connection", "error", err)
		return fmt.Errorf("close PulseAudio connection: %w", err)
	}

	r.logger.Debug("Released PA sink registry instance")

	return nil
}

func customSinkFromInfo(sinkName string, channels int, sinkType string, props proto.PropList) CustomSink {
	name := propString(props, propDescription)
	if name == "" {
		name = sinkName
	}

	return CustomSink{
		SinkName:    sinkName,
		Name:        name,
		Description: propString(props, propDescription),
		Channels:    channels,
		Type:        sinkType,
		State:       SinkStateLoaded,
	}
}
