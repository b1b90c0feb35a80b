package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"hdxvoice/pkg/audioengine"
	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// OpenChunk men-decode base64 satu chunk menjadi stream yang bisa diputar.
// Mime kosong berarti hdx.DefaultChunkMime; mime dari data URL menang.
// Stream memegang byte chunk sampai Close dipanggil.
func OpenChunk(payload, mime string) (beep.StreamCloser, beep.Format, error) {
	data, urlMime, err := DecodeBase64(payload)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if urlMime != "" {
		mime = urlMime
	}
	if mime == "" {
		mime = hdx.DefaultChunkMime
	}
	if sniffed := Sniff(data); sniffed != "" {
		mime = sniffed
	}
	return OpenStream(data, mime)
}

// OpenStream membuka decoder lazy untuk data sesuai mime.
func OpenStream(data []byte, mime string) (beep.StreamCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, ErrEmptyPayload
	}
	src := &payloadReader{Reader: bytes.NewReader(data)}

	switch NormalizeMime(mime) {
	case MimeWAV:
		s, format, err := wav.Decode(src)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("chunk wav: %w", err)
		}
		return s, format, nil

	case MimeMP3:
		s, format, err := mp3.Decode(src)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("chunk mp3: %w", err)
		}
		return s, format, nil

	case MimeOpus:
		sd, err := audioengine.NewStreamDecoder(src)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("chunk opus: %w", err)
		}
		return sd, sd.Format(), nil
	}
	return nil, beep.Format{}, fmt.Errorf("mime %q: %w", mime, ErrUnsupportedFormat)
}

var errReleased = errors.New("payload sudah dilepas")

// payloadReader memegang byte chunk; Close melepas referensinya.
type payloadReader struct {
	*bytes.Reader
	released bool
}

func (p *payloadReader) Read(b []byte) (int, error) {
	if p.released {
		return 0, errReleased
	}
	return p.Reader.Read(b)
}

func (p *payloadReader) Seek(offset int64, whence int) (int64, error) {
	if p.released {
		return 0, errReleased
	}
	return p.Reader.Seek(offset, whence)
}

func (p *payloadReader) Close() error {
	if p.released {
		return nil
	}
	p.released = true
	p.Reader = bytes.NewReader(nil)
	return nil
}

var _ io.ReadSeekCloser = (*payloadReader)(nil)
