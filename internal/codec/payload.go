package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"hdxvoice/pkg/hdx"
)

var (
	// ErrEmptyPayload: payload kosong atau hasil decode nol byte.
	ErrEmptyPayload = errors.New("payload audio kosong")
	// ErrUnsupportedFormat: bukan wav, mp3, atau frame opus HDX.
	ErrUnsupportedFormat = errors.New("format audio tidak didukung")
)

// Mime type yang dikenali.
const (
	MimeWAV  = "audio/wav"
	MimeMP3  = "audio/mpeg"
	MimeOpus = "audio/opus"
)

// DecodeBase64 mengubah payload base64 menjadi byte. Data URL
// ("data:audio/mpeg;base64,...") diterima dan mime-nya dikembalikan.
// Whitespace dan padding yang hilang ditoleransi.
func DecodeBase64(payload string) ([]byte, string, error) {
	mime := ""
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		head, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, "", fmt.Errorf("data url tanpa isi: %w", ErrEmptyPayload)
		}
		head = strings.TrimPrefix(head, "data:")
		mime, _, _ = strings.Cut(head, ";")
		payload = body
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, mime, ErrEmptyPayload
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(payload, "=") && len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(payload)
	if err != nil {
		return nil, mime, fmt.Errorf("base64 rusak: %w", err)
	}
	if len(data) == 0 {
		return nil, mime, ErrEmptyPayload
	}
	return data, NormalizeMime(mime), nil
}

// NormalizeMime menyeragamkan alias mime; string kosong tetap kosong.
func NormalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	mime, _, _ = strings.Cut(mime, ";")
	switch mime {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return MimeWAV
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg":
		return MimeMP3
	case "audio/opus", "audio/x-hdx-opus":
		return MimeOpus
	}
	return mime
}

// Sniff menebak mime dari magic byte. Mengembalikan "" jika tidak dikenal.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return MimeWAV
	case bytes.HasPrefix(data, []byte(hdx.OpusFrameMagic)):
		return MimeOpus
	case bytes.HasPrefix(data, []byte("ID3")):
		return MimeMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MimeMP3
	}
	return ""
}
