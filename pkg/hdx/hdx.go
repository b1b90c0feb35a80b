package hdx

import "time"

const (
	// === IDENTITY & VERSIONING ===
	Version = "1.0.0"

	// === MAGIC NUMBERS ===
	// OpusFrameMagic membuka stream frame opus HDX: setelahnya
	// [uint16 BE panjang][frame opus] berulang.
	OpusFrameMagic = "HDXOPUS1"

	// === ENGINE SPECS ===
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 20 // ms per frame opus
	BufferMs   = 100

	// === ANALYSER ===
	FFTSize     = 256
	Smoothing   = 0.3
	MinDecibels = -100.0
	MaxDecibels = -30.0

	// === AMPLITUDE ===
	VoiceBand  = 0.6  // porsi bin bawah tempat energi suara manusia
	NoiseFloor = 0.05 // di bawah ini dianggap hening
	Boost      = 2.5
	MinActive  = 0.3 // lantai agar suara pelan tetap terlihat
	FrameRate  = 60

	// === QUEUE ===
	DefaultChunkMime = "audio/wav"
)

// FrameInterval adalah jarak antar tick sampler untuk frame rate tertentu.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = FrameRate
	}
	return time.Second / time.Duration(fps)
}
