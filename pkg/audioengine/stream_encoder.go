package audioengine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"hdxvoice/pkg/hdx"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hraban/opus"
)

// ErrFrameFormat: encoder HDX hanya menerima PCM 48kHz mono/stereo.
var ErrFrameFormat = errors.New("input harus wav 48kHz mono/stereo")

// StreamEncodeWav meng-encode wav 48kHz menjadi stream frame opus HDX di w.
// Mengembalikan durasi dalam detik.
func StreamEncodeWav(input io.ReadSeeker, w io.Writer) (float64, error) {
	dec := wav.NewDecoder(input)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("bukan wav valid: %w", ErrFrameFormat)
	}
	srcChannels := int(dec.NumChans)
	if dec.SampleRate != hdx.SampleRate || srcChannels < 1 || srcChannels > 2 {
		return 0, ErrFrameFormat
	}
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	dec = wav.NewDecoder(input)

	fe, err := NewFrameEncoder(w)
	if err != nil {
		return 0, err
	}

	// baca 1 detik per siklus I/O agar efisien
	intBuf := &audio.IntBuffer{
		Data:   make([]int, hdx.SampleRate*srcChannels),
		Format: &audio.Format{NumChannels: srcChannels, SampleRate: hdx.SampleRate},
	}
	shift := 0
	if bd := int(dec.BitDepth); bd > 16 {
		shift = bd - 16
	}

	stereo := make([]int16, 0, hdx.SampleRate*hdx.Channels)
	for {
		n, err := dec.PCMBuffer(intBuf)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 0 {
			break
		}

		stereo = stereo[:0]
		for i := 0; i < n; i += srcChannels {
			l := int16(intBuf.Data[i] >> shift)
			r := l
			if srcChannels == 2 && i+1 < n {
				r = int16(intBuf.Data[i+1] >> shift)
			}
			stereo = append(stereo, l, r)
		}
		if err := fe.Write(stereo); err != nil {
			return 0, err
		}

		if err == io.EOF {
			break
		}
	}

	if err := fe.Flush(); err != nil {
		return 0, err
	}
	return fe.Duration(), nil
}

// FrameEncoder memecah PCM stereo interleaved menjadi frame opus 20ms.
type FrameEncoder struct {
	w       io.Writer
	enc     *opus.Encoder
	pending []int16
	opusBuf []byte
	samples int
}

// NewFrameEncoder langsung menulis magic ke w.
func NewFrameEncoder(w io.Writer) (*FrameEncoder, error) {
	enc, err := opus.NewEncoder(hdx.SampleRate, hdx.Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, hdx.OpusFrameMagic); err != nil {
		return nil, err
	}
	return &FrameEncoder{w: w, enc: enc, opusBuf: make([]byte, 1500)}, nil
}

func (fe *FrameEncoder) frameLen() int {
	return hdx.SampleRate / 1000 * hdx.FrameSize * hdx.Channels
}

// Write menampung pcm dan meng-encode setiap frame penuh.
func (fe *FrameEncoder) Write(pcm []int16) error {
	fe.pending = append(fe.pending, pcm...)
	size := fe.frameLen()
	for len(fe.pending) >= size {
		if err := fe.encode(fe.pending[:size]); err != nil {
			return err
		}
		fe.pending = fe.pending[size:]
	}
	return nil
}

// Flush meng-encode sisa pcm dengan padding silence.
func (fe *FrameEncoder) Flush() error {
	if len(fe.pending) == 0 {
		return nil
	}
	frame := make([]int16, fe.frameLen())
	copy(frame, fe.pending)
	fe.samples -= len(frame) - len(fe.pending)
	fe.pending = nil
	return fe.encode(frame)
}

// Duration adalah total audio yang sudah di-encode, dalam detik.
func (fe *FrameEncoder) Duration() float64 {
	return float64(fe.samples) / float64(hdx.SampleRate) / float64(hdx.Channels)
}

func (fe *FrameEncoder) encode(frame []int16) error {
	n, err := fe.enc.Encode(frame, fe.opusBuf)
	if err != nil {
		return err
	}
	if err := binary.Write(fe.w, binary.BigEndian, uint16(n)); err != nil {
		return err
	}
	if _, err := fe.w.Write(fe.opusBuf[:n]); err != nil {
		return err
	}
	fe.samples += len(frame)
	return nil
}
