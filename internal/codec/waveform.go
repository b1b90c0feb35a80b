package codec

import (
	"math"
)

// Waveform membuat byte array berisi amplitudo RMS (0-255) sebanyak points
// titik, untuk ringkasan visual sebuah ucapan.
func Waveform(samples [][2]float64, points int) []byte {
	if points <= 0 || len(samples) == 0 {
		return nil
	}
	step := len(samples) / points
	if step == 0 {
		step = 1
	}

	waveform := make([]byte, 0, points)
	for i := 0; i < len(samples) && len(waveform) < points; i += step {
		var sum float64
		count := 0
		// rata-rata energi mono dalam satu blok (RMS)
		for j := 0; j < step && (i+j) < len(samples); j++ {
			v := (samples[i+j][0] + samples[i+j][1]) / 2
			sum += v * v
			count++
		}

		rms := math.Sqrt(sum / float64(count))
		waveform = append(waveform, uint8(math.Min(rms*255.0*5.0, 255.0)))
	}
	return waveform
}

// Sparkline merender waveform sebagai blok unicode untuk terminal.
func Sparkline(waveform []byte) string {
	const levels = "▁▂▃▄▅▆▇█"
	blocks := []rune(levels)
	out := make([]rune, len(waveform))
	for i, v := range waveform {
		out[i] = blocks[int(v)*(len(blocks)-1)/255]
	}
	return string(out)
}
