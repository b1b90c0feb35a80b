package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/faiface/beep"
	"github.com/gordonklaus/portaudio"
)

// PortAudioOutput menarik graph dari callback stream PortAudio.
type PortAudioOutput struct {
	mu              sync.Mutex
	framesPerBuffer int
	stream          *portaudio.Stream
	s               beep.Streamer
	buf             [][2]float64
}

func NewPortAudioOutput(framesPerBuffer int) *PortAudioOutput {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &PortAudioOutput{framesPerBuffer: framesPerBuffer}
}

func (o *PortAudioOutput) Start(format beep.Format, s beep.Streamer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("init portaudio: %w", err)
	}

	o.mu.Lock()
	o.s = s
	o.buf = make([][2]float64, o.framesPerBuffer)
	o.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(format.SampleRate), o.framesPerBuffer, o.process)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start stream: %w", err)
	}
	o.stream = stream
	return nil
}

// process dipanggil thread audio PortAudio dengan buffer stereo interleaved.
func (o *PortAudioOutput) process(out []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	frames := len(out) / 2
	if cap(o.buf) < frames {
		o.buf = make([][2]float64, frames)
	}
	buf := o.buf[:frames]
	for i := range buf {
		buf[i] = [2]float64{}
	}
	if o.s != nil {
		o.s.Stream(buf)
	}
	for i, smp := range buf {
		out[i*2] = float32(smp[0])
		out[i*2+1] = float32(smp[1])
	}
}

func (o *PortAudioOutput) Lock()   { o.mu.Lock() }
func (o *PortAudioOutput) Unlock() { o.mu.Unlock() }

func (o *PortAudioOutput) Suspend() error {
	if o.stream == nil {
		return errors.New("stream belum dibuka")
	}
	return o.stream.Stop()
}

func (o *PortAudioOutput) Resume() error {
	if o.stream == nil {
		return errors.New("stream belum dibuka")
	}
	return o.stream.Start()
}

func (o *PortAudioOutput) Close() error {
	var err error
	if o.stream != nil {
		o.stream.Stop()
		err = o.stream.Close()
		o.stream = nil
	}
	o.mu.Lock()
	o.s = nil
	o.mu.Unlock()
	portaudio.Terminate()
	return err
}
