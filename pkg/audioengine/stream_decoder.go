package audioengine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
	"github.com/hraban/opus"
)

// ErrBadMagic dikembalikan jika stream tidak diawali hdx.OpusFrameMagic.
var ErrBadMagic = errors.New("magic frame opus HDX tidak valid")

// StreamDecoder adalah lazy streamer untuk frame opus HDX
// (48kHz stereo, [uint16 BE size][frame]).
type StreamDecoder struct {
	r      io.Reader
	closer io.Closer
	dec    *opus.Decoder
	pcm    []int16
	buffer [][2]float64
	err    error
	closed bool
}

// NewStreamDecoder membaca dan memvalidasi magic lalu menyiapkan decoder.
// Jika r juga io.Closer, Close akan menutupnya.
func NewStreamDecoder(r io.Reader) (*StreamDecoder, error) {
	magic := make([]byte, len(hdx.OpusFrameMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("baca magic: %w", err)
	}
	if string(magic) != hdx.OpusFrameMagic {
		return nil, ErrBadMagic
	}

	d, err := opus.NewDecoder(hdx.SampleRate, hdx.Channels)
	if err != nil {
		return nil, err
	}
	sd := &StreamDecoder{
		r:   r,
		dec: d,
		pcm: make([]int16, 5760*hdx.Channels), // 120ms, frame opus terpanjang
	}
	if c, ok := r.(io.Closer); ok {
		sd.closer = c
	}
	return sd, nil
}

// Format selalu 48kHz stereo.
func (sd *StreamDecoder) Format() beep.Format {
	return beep.Format{SampleRate: hdx.SampleRate, NumChannels: hdx.Channels, Precision: 2}
}

// DecodeFrame men-decode satu frame opus menjadi sampel stereo float.
func (sd *StreamDecoder) DecodeFrame(frame []byte) ([][2]float64, error) {
	n, err := sd.dec.Decode(frame, sd.pcm)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, n)
	for i := 0; i < n; i++ {
		out[i] = [2]float64{
			float64(sd.pcm[i*2]) / 32768.0,
			float64(sd.pcm[i*2+1]) / 32768.0,
		}
	}
	return out, nil
}

// nextFrame membaca satu frame; io.EOF berarti stream habis dengan rapi.
func (sd *StreamDecoder) nextFrame() error {
	var sz uint16
	if err := binary.Read(sd.r, binary.BigEndian, &sz); err != nil {
		return err
	}
	enc := make([]byte, sz)
	if _, err := io.ReadFull(sd.r, enc); err != nil {
		return fmt.Errorf("frame terpotong: %w", err)
	}
	samples, err := sd.DecodeFrame(enc)
	if err != nil {
		return fmt.Errorf("decode frame opus: %w", err)
	}
	sd.buffer = append(sd.buffer, samples...)
	return nil
}

func (sd *StreamDecoder) Stream(samples [][2]float64) (int, bool) {
	if sd.closed || sd.err != nil {
		return 0, false
	}

	filled := 0
	for filled < len(samples) {
		if len(sd.buffer) == 0 {
			if err := sd.nextFrame(); err != nil {
				if err != io.EOF {
					sd.err = err
				}
				break
			}
			continue
		}

		n := copy(samples[filled:], sd.buffer)
		sd.buffer = sd.buffer[n:]
		filled += n
	}

	return filled, filled > 0
}

func (sd *StreamDecoder) Err() error { return sd.err }

// Close melepas buffer dan reader sumber. Aman dipanggil berulang.
func (sd *StreamDecoder) Close() error {
	if sd.closed {
		return nil
	}
	sd.closed = true
	sd.buffer = nil
	if sd.closer != nil {
		return sd.closer.Close()
	}
	return nil
}
