package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 men-decode seluruh mp3 ke memori. go-mp3 selalu mengeluarkan
// PCM 16-bit stereo little-endian.
func DecodeMP3(data []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("mp3 tidak valid: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3: %w", err)
	}

	frames := len(raw) / 4
	pcm := PCM{Samples: make([][2]float64, frames), SampleRate: dec.SampleRate()}
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		pcm.Samples[i] = [2]float64{float64(l) / 32768.0, float64(r) / 32768.0}
	}
	return pcm, nil
}
