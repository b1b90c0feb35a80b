package audioengine

import "hdxvoice/pkg/hdx"

// LoudnessParams mengatur reduksi spektrum menjadi satu nilai kenyaringan.
type LoudnessParams struct {
	VoiceBand  float64
	NoiseFloor float64
	Boost      float64
	MinActive  float64
}

// DefaultLoudness memakai konstanta indikator bicara HDX.
var DefaultLoudness = LoudnessParams{
	VoiceBand:  hdx.VoiceBand,
	NoiseFloor: hdx.NoiseFloor,
	Boost:      hdx.Boost,
	MinActive:  hdx.MinActive,
}

// Loudness merata-rata bin bawah (pita suara), normalisasi ke [0,1] lalu
// memberi boost perseptual. Nilai di bawah noise floor menjadi tepat 0.
func (p LoudnessParams) Loudness(bins []uint8) float64 {
	n := int(float64(len(bins)) * p.VoiceBand)
	if n <= 0 {
		return 0
	}

	var sum float64
	for _, b := range bins[:n] {
		sum += float64(b)
	}
	v := sum / float64(n) / 255

	if v <= p.NoiseFloor {
		return 0
	}
	v = max(v*p.Boost, p.MinActive)
	return min(max(v, 0), 1)
}

// Loudness memakai DefaultLoudness.
func Loudness(bins []uint8) float64 {
	return DefaultLoudness.Loudness(bins)
}
