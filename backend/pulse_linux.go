//go:build linux

package backend

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"proctap/pcm"
	"proctap/ring"
)

const (
	pulseSampleRate = 48000
	pulseChannels   = 2
)

// pulseStrategy implements spec §4.4 strategy 3: a private null-sink
// named for this session, the target's sink-input moved onto it (not
// copied, so nothing else keeps hearing it), and a pulse.RecordStream on
// the null-sink's monitor feeding the ring — the same pulse.NewClient /
// pulse.NewRecord / RecordMonitor shape the donor's system-wide capture
// used, narrowed here to the session's private sink.
type pulseStrategy struct {
	client       *pulse.Client
	stream       *pulse.RecordStream
	sinkName     string
	moduleIndex  uint32
	originalSink string
	sinkInputIdx uint32
}

// ringWriter adapts *ring.Buffer to pulse.Writer.
type ringWriter struct{ buf *ring.Buffer }

func (w ringWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return len(p), nil
}

func (w ringWriter) Format() byte { return proto.FormatFloat32LE }

func tryPulseAudio(b *linuxBackend) (pcm.Format, func(), error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("proctap"))
	if err != nil {
		return pcm.Format{}, nil, fmt.Errorf("pulse connect: %w", err)
	}

	strategy := &pulseStrategy{client: client, sinkName: "proctap-" + uuid.NewString()}

	if err := strategy.createNullSink(); err != nil {
		client.Close()
		return pcm.Format{}, nil, err
	}

	if err := strategy.moveTargetSinkInput(b.target.ProcessID); err != nil {
		strategy.teardown()
		return pcm.Format{}, nil, err
	}

	format := pcm.Format{SampleRate: pulseSampleRate, Channels: pulseChannels, SampleFormat: pcm.SampleFormatFloat32}

	stream, err := client.NewRecord(
		ringWriter{buf: b.buf},
		pulse.RecordMonitor(strategy.sinkName),
		pulse.RecordStereo,
		pulse.RecordSampleRate(pulseSampleRate),
	)
	if err != nil {
		strategy.teardown()
		return pcm.Format{}, nil, fmt.Errorf("pulse record stream: %w", err)
	}
	strategy.stream = stream
	stream.Start()

	return format, strategy.teardown, nil
}

// createNullSink loads module-null-sink under this session's private
// name via the low-level proto client (jfreymuth/pulse's high-level API
// has no sink/module management surface).
func (s *pulseStrategy) createNullSink() error {
	conn := s.client.Raw()
	args := fmt.Sprintf("sink_name=%s sink_properties=device.description=%s", s.sinkName, s.sinkName)
	var reply proto.LoadModuleReply
	if err := conn.Request(&proto.LoadModule{Name: "module-null-sink", Args: args}, &reply); err != nil {
		return fmt.Errorf("load module-null-sink: %w", err)
	}
	s.moduleIndex = reply.ModuleIndex
	return nil
}

// moveTargetSinkInput enumerates sink-inputs for the property
// application.process.id, and moves (not copies) the first match onto
// the private null-sink, per spec §4.4's per-process isolation for
// strategy 3 and its acknowledged Open Question about disruptiveness.
func (s *pulseStrategy) moveTargetSinkInput(pid uint32) error {
	conn := s.client.Raw()
	var list proto.GetSinkInputInfoListReply
	if err := conn.Request(&proto.GetSinkInputInfoList{}, &list); err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	for _, input := range list {
		if pidStr, ok := input.Properties["application.process.id"]; ok {
			if v, _ := strconv.ParseUint(string(pidStr.Bytes()), 10, 32); uint32(v) == pid {
				s.sinkInputIdx = input.SinkInputIndex
				s.originalSink = input.Device
				return conn.Request(&proto.MoveSinkInput{
					SinkInputIndex: input.SinkInputIndex,
					DeviceIndex:    0xFFFFFFFF,
					Device:         s.sinkName,
				}, nil)
			}
		}
	}
	return fmt.Errorf("no sink-input found for pid %d", pid)
}

func (s *pulseStrategy) teardown() {
	if s.stream != nil {
		s.stream.Stop()
	}
	conn := s.client.Raw()
	if s.sinkInputIdx != 0 && s.originalSink != "" {
		conn.Request(&proto.MoveSinkInput{
			SinkInputIndex: s.sinkInputIdx,
			DeviceIndex:    0xFFFFFFFF,
			Device:         s.originalSink,
		}, nil)
	}
	if s.moduleIndex != 0 {
		conn.Request(&proto.UnloadModule{ModuleIndex: s.moduleIndex}, nil)
	}
	s.client.Close()
}
