package playback

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// SpeakerOutput memakai beep/speaker (oto). Paket speaker bersifat global,
// jadi hanya satu SpeakerOutput yang boleh aktif dalam satu proses.
type SpeakerOutput struct {
	buffer time.Duration
}

func NewSpeakerOutput(buffer time.Duration) *SpeakerOutput {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &SpeakerOutput{buffer: buffer}
}

func (o *SpeakerOutput) Start(format beep.Format, s beep.Streamer) error {
	sr := format.SampleRate
	if err := speaker.Init(sr, sr.N(o.buffer)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(s)
	return nil
}

func (o *SpeakerOutput) Lock()   { speaker.Lock() }
func (o *SpeakerOutput) Unlock() { speaker.Unlock() }

func (o *SpeakerOutput) Suspend() error { return speaker.Suspend() }
func (o *SpeakerOutput) Resume() error  { return speaker.Resume() }

func (o *SpeakerOutput) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}
