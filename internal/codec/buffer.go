package codec

import (
	"fmt"

	"github.com/faiface/beep"
)

// resampleQuality dipakai untuk semua konversi sample rate.
const resampleQuality = 4

// Decode men-decode payload penuh sesuai mime (atau hasil sniff jika mime
// kosong / tidak dikenal).
func Decode(data []byte, mime string) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, ErrEmptyPayload
	}
	if sniffed := Sniff(data); sniffed != "" {
		// magic byte lebih bisa dipercaya dibanding mime deklarasi
		mime = sniffed
	}

	switch NormalizeMime(mime) {
	case MimeWAV:
		return DecodeWAV(data)
	case MimeMP3:
		return DecodeMP3(data)
	case MimeOpus:
		return DecodeOpusFrames(data)
	}
	return PCM{}, ErrUnsupportedFormat
}

// DecodeBuffer men-decode payload base64 sepenuhnya ke memori dan
// me-resample ke format output. Dipakai jalur immediate.
func DecodeBuffer(payload string, format beep.Format) (*beep.Buffer, error) {
	data, mime, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	pcm, err := Decode(data, mime)
	if err != nil {
		return nil, err
	}
	return pcm.Buffer(format)
}

// Buffer menyalin PCM ke beep.Buffer pada sample rate format.
func (p PCM) Buffer(format beep.Format) (*beep.Buffer, error) {
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d: %w", p.SampleRate, ErrUnsupportedFormat)
	}

	var s beep.Streamer = &samplesStreamer{samples: p.Samples}
	if src := beep.SampleRate(p.SampleRate); src != format.SampleRate {
		s = beep.Resample(resampleQuality, src, format.SampleRate, s)
	}

	buf := beep.NewBuffer(format)
	buf.Append(s)
	return buf, nil
}

// samplesStreamer memutar slice sampel sekali dari awal.
type samplesStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *samplesStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *samplesStreamer) Err() error { return nil }
