package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCM adalah audio mentah hasil decode penuh, sampel float stereo [-1,1].
type PCM struct {
	Samples    [][2]float64
	SampleRate int
}

// Duration panjang audio.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// DecodeWAV men-decode seluruh file wav ke memori memakai go-audio.
func DecodeWAV(data []byte) (PCM, error) {
	if !wav.NewDecoder(bytes.NewReader(data)).IsValidFile() {
		return PCM{}, fmt.Errorf("wav tidak valid: %w", ErrUnsupportedFormat)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return PCM{}, fmt.Errorf("wav tanpa channel: %w", ErrUnsupportedFormat)
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return PCM{}, fmt.Errorf("bit depth %d: %w", bitDepth, ErrUnsupportedFormat)
	}

	scale := float64(int(1) << (bitDepth - 1))
	offset := 0
	if bitDepth == 8 {
		// pcm 8-bit unsigned
		offset = 128
		scale = 128
	}

	frames := len(buf.Data) / channels
	pcm := PCM{Samples: make([][2]float64, frames), SampleRate: buf.Format.SampleRate}
	for i := 0; i < frames; i++ {
		l := float64(buf.Data[i*channels]-offset) / scale
		r := l
		if channels > 1 {
			r = float64(buf.Data[i*channels+1]-offset) / scale
		}
		pcm.Samples[i] = [2]float64{l, r}
	}

	// segera bebaskan buffer mentah
	buf.Data = nil
	return pcm, nil
}

// EncodeWAV menulis sampel int 16-bit interleaved menjadi file wav PCM.
func EncodeWAV(samples []int, sampleRate, channels int) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)
	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// SplitWAV memotong wav menjadi beberapa file wav mandiri sepanjang every.
// Dipakai untuk mensimulasikan TTS yang mengirim audio per chunk.
func SplitWAV(data []byte, every time.Duration) ([][]byte, error) {
	if every <= 0 {
		return nil, errors.New("durasi potongan harus positif")
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav tidak valid: %w", ErrUnsupportedFormat)
	}
	dec = wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	shift := 0
	if buf.SourceBitDepth > 16 {
		shift = buf.SourceBitDepth - 16
	}
	step := int(int64(rate)*int64(every)/int64(time.Second)) * channels
	if step <= 0 {
		step = channels
	}

	var chunks [][]byte
	for i := 0; i < len(buf.Data); i += step {
		end := min(i+step, len(buf.Data))
		part := make([]int, end-i)
		for j, v := range buf.Data[i:end] {
			if buf.SourceBitDepth == 8 {
				v = (v - 128) << 8
			}
			part[j] = v >> shift
		}
		b, err := EncodeWAV(part, rate, channels)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, b)
	}
	return chunks, nil
}

// writeSeeker adalah io.WriteSeeker di memori untuk encoder wav yang
// perlu kembali ke header saat Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("whence tidak valid")
	}
	if abs < 0 {
		return 0, errors.New("posisi negatif")
	}
	w.pos = int(abs)
	return abs, nil
}
