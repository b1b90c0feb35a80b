package codec

import (
	"bytes"
	"fmt"

	"hdxvoice/pkg/audioengine"
	"hdxvoice/pkg/hdx"
)

// DecodeOpusFrames merubah stream frame opus HDX kembali menjadi PCM penuh.
func DecodeOpusFrames(data []byte) (PCM, error) {
	sd, err := audioengine.NewStreamDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("frame opus: %w", err)
	}
	defer sd.Close()

	pcm := PCM{SampleRate: hdx.SampleRate}
	buf := make([][2]float64, 4096)
	for {
		n, ok := sd.Stream(buf)
		pcm.Samples = append(pcm.Samples, buf[:n]...)
		if !ok {
			break
		}
	}
	if err := sd.Err(); err != nil {
		return PCM{}, err
	}
	return pcm, nil
}

// EncodeOpusFrames meng-encode wav 48kHz menjadi stream frame opus HDX.
func EncodeOpusFrames(wavData []byte) ([]byte, float64, error) {
	var out bytes.Buffer
	dur, err := audioengine.StreamEncodeWav(bytes.NewReader(wavData), &out)
	if err != nil {
		return nil, 0, err
	}
	return out.Bytes(), dur, nil
}
