//go:build linux

package backend

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"proctap/pcm"
	"proctap/ring"
)

// pwRecordPump spawns `pw-record` targeting the node discovered for the
// target pid and reads its raw PCM stdout into the ring, grounded on the
// subprocess-capture idiom (command + stdout pipe + background reader
// goroutine) used across the pack for PipeWire fallbacks.
type pwRecordPump struct {
	cmd    *exec.Cmd
	format pcm.Format
	done   chan struct{}
}

const (
	pwRecordRate     = 48000
	pwRecordChannels = 2
)

// tryPwRecord implements spec §4.4 strategy 2.
func tryPwRecord(b *linuxBackend) (pcm.Format, func(), error) {
	if !hasExecutable("pw-record") {
		return pcm.Format{}, nil, fmt.Errorf("pw-record not found in PATH")
	}

	nodeID, err := findPipewireNodeForPID(b.target.ProcessID)
	if err != nil {
		return pcm.Format{}, nil, err
	}

	format := pcm.Format{SampleRate: pwRecordRate, Channels: pwRecordChannels, SampleFormat: pcm.SampleFormatFloat32}

	cmd := exec.Command("pw-record",
		"--target", strconv.Itoa(nodeID),
		"--rate", strconv.Itoa(pwRecordRate),
		"--channels", strconv.Itoa(pwRecordChannels),
		"--format", "f32",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pcm.Format{}, nil, fmt.Errorf("pw-record stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return pcm.Format{}, nil, fmt.Errorf("start pw-record: %w", err)
	}

	pump := &pwRecordPump{cmd: cmd, format: format, done: make(chan struct{})}
	go pump.readLoop(stdout, b.buf)

	return format, pump.stop, nil
}

func (p *pwRecordPump) readLoop(stdout io.Reader, buf *ring.Buffer) {
	r := bufio.NewReaderSize(stdout, 64*1024)
	frameSize := p.format.FrameSize()
	chunk := make([]byte, 4096*frameSize)
	defer close(p.done)
	var remainder []byte
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			data := chunk[:n]
			if len(remainder) > 0 {
				data = append(remainder, data...)
				remainder = nil
			}
			aligned := len(data) - len(data)%frameSize
			if aligned > 0 {
				buf.Write(data[:aligned])
			}
			if aligned < len(data) {
				remainder = append(remainder[:0], data[aligned:]...)
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *pwRecordPump) stop() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	<-p.done
	p.cmd.Wait()
}
