package audioengine

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analyser adalah tap frekuensi: semua sampel yang lewat diteruskan apa adanya,
// sambil mix mono disalin ke ring buffer sepanjang FFT size.
type Analyser struct {
	s beep.Streamer

	mu        sync.Mutex
	ring      []float64
	pos       int
	fftSize   int
	smoothing float64
	window    []float64
	smoothed  []float64
	scratch   []float64

	MinDecibels float64
	MaxDecibels float64
}

// NewAnalyser membungkus s. fftSize harus pangkat dua antara 32 dan 32768,
// smoothing di [0,1].
func NewAnalyser(s beep.Streamer, fftSize int, smoothing float64) (*Analyser, error) {
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size %d bukan pangkat dua 32..32768", fftSize)
	}
	if smoothing < 0 || smoothing > 1 {
		return nil, fmt.Errorf("smoothing %.2f di luar [0,1]", smoothing)
	}
	return &Analyser{
		s:           s,
		ring:        make([]float64, fftSize),
		fftSize:     fftSize,
		smoothing:   smoothing,
		window:      window.Blackman(fftSize),
		smoothed:    make([]float64, fftSize/2),
		scratch:     make([]float64, fftSize),
		MinDecibels: hdx.MinDecibels,
		MaxDecibels: hdx.MaxDecibels,
	}, nil
}

func (a *Analyser) Stream(samples [][2]float64) (int, bool) {
	n, ok := a.s.Stream(samples)
	a.mu.Lock()
	for i := 0; i < n; i++ {
		a.ring[a.pos] = (samples[i][0] + samples[i][1]) / 2
		a.pos = (a.pos + 1) % a.fftSize
	}
	a.mu.Unlock()
	return n, ok
}

func (a *Analyser) Err() error { return a.s.Err() }

// FrequencyBinCount selalu setengah dari FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// FloatFrequencyData mengisi dst dengan magnitude (dB) yang sudah di-smoothing.
func (a *Analyser) FloatFrequencyData(dst []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyse()
	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		dst[i] = toDecibels(a.smoothed[i])
	}
}

// ByteFrequencyData memetakan rentang [MinDecibels, MaxDecibels] ke 0..255.
func (a *Analyser) ByteFrequencyData(dst []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyse()
	scale := 1 / (a.MaxDecibels - a.MinDecibels)
	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		v := 255 * (toDecibels(a.smoothed[i]) - a.MinDecibels) * scale
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		dst[i] = uint8(v)
	}
}

// Reset membuang histori sampel dan smoothing.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
	a.pos = 0
}

// analyse harus dipanggil dengan a.mu terkunci.
func (a *Analyser) analyse() {
	// urutkan ring buffer secara kronologis lalu beri window
	for i := 0; i < a.fftSize; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%a.fftSize] * a.window[i]
	}

	coeffs := fft.FFTReal(a.scratch)
	norm := 1 / float64(a.fftSize)
	for k := range a.smoothed {
		mag := cmplx.Abs(coeffs[k]) * norm
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
	}
}

func toDecibels(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
