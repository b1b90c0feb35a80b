package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hdxvoice/pkg/audioengine"
	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
)

// ErrNotInitialized dikembalikan Play sebelum Initialize berhasil.
var ErrNotInitialized = errors.New("playback context belum diinisialisasi")

type Options struct {
	Format    beep.Format
	FFTSize   int
	Smoothing float64
	VolumeDB  float64
	// NewOutput membuat perangkat output setiap Initialize.
	NewOutput func() Output
	Logger    *slog.Logger
}

// Context memiliki graph output: mixer -> analyser -> gain -> Output.
// Paling banyak satu graph dan satu analyser per Context.
type Context struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	out       Output
	mixer     *beep.Mixer
	analyser  *audioengine.Analyser
	gain      *effects.Volume
	suspended bool
}

func NewContext(opts Options) *Context {
	if opts.Format.SampleRate == 0 {
		opts.Format = beep.Format{SampleRate: hdx.SampleRate, NumChannels: hdx.Channels, Precision: 2}
	}
	if opts.FFTSize == 0 {
		opts.FFTSize = hdx.FFTSize
	}
	if opts.NewOutput == nil {
		opts.NewOutput = func() Output { return NewSpeakerOutput(0) }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Context{
		opts: opts,
		log:  log.With(slog.String("component", "playback")),
	}
}

// Format adalah format graph output, tersedia juga sebelum Initialize.
func (c *Context) Format() beep.Format { return c.opts.Format }

// Initialize membangun graph jika belum ada. Idempoten.
func (c *Context) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

func (c *Context) initLocked() error {
	if c.out != nil {
		return nil
	}

	mixer := &beep.Mixer{}
	analyser, err := audioengine.NewAnalyser(mixer, c.opts.FFTSize, c.opts.Smoothing)
	if err != nil {
		return fmt.Errorf("analyser: %w", err)
	}
	gain := &effects.Volume{Streamer: analyser, Base: 2, Volume: c.opts.VolumeDB}

	out := c.opts.NewOutput()
	if err := out.Start(c.opts.Format, gain); err != nil {
		return fmt.Errorf("start output: %w", err)
	}

	c.out, c.mixer, c.analyser, c.gain = out, mixer, analyser, gain
	c.suspended = false
	c.log.Debug("graph output dibuat",
		slog.Int("sample_rate", int(c.opts.Format.SampleRate)),
		slog.Int("fft_size", c.opts.FFTSize))
	return nil
}

// EnsureRunning menginisialisasi bila perlu lalu me-resume graph yang
// sedang suspend. Dipanggil sebelum setiap playback.
func (c *Context) EnsureRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(); err != nil {
		return err
	}
	if !c.suspended {
		return nil
	}
	if err := c.out.Resume(); err != nil {
		return fmt.Errorf("resume output: %w", err)
	}
	c.suspended = false
	c.log.Debug("graph output di-resume")
	return nil
}

// Suspend menghentikan perangkat sementara (mis. aplikasi ke background).
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil || c.suspended {
		return nil
	}
	if err := c.out.Suspend(); err != nil {
		return fmt.Errorf("suspend output: %w", err)
	}
	c.suspended = true
	return nil
}

// Suspended melaporkan apakah graph sedang suspend.
func (c *Context) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Initialized melaporkan apakah graph sudah ada.
func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

// Teardown menghentikan semua voice lalu melepas graph. Sesudahnya
// Initialize boleh dipanggil lagi.
func (c *Context) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return
	}

	c.out.Lock()
	c.mixer.Clear()
	c.out.Unlock()

	if err := c.out.Close(); err != nil {
		c.log.Warn("gagal menutup output", slog.String("error", err.Error()))
	}
	c.analyser.Reset()
	c.out, c.mixer, c.analyser, c.gain = nil, nil, nil, nil
	c.suspended = false
	c.log.Debug("graph output dilepas")
}

// Analyser mengembalikan analyser aktif, atau nil sebelum Initialize.
func (c *Context) Analyser() *audioengine.Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyser
}

// SetVolume mengubah gain master (dB, basis 2). Tidak mempengaruhi analyser.
func (c *Context) SetVolume(db float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.VolumeDB = db
	if c.out == nil {
		return
	}
	c.out.Lock()
	c.gain.Volume = db
	c.out.Unlock()
}

// Voices adalah jumlah voice yang masih ada di mixer.
func (c *Context) Voices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return 0
	}
	c.out.Lock()
	defer c.out.Unlock()
	return c.mixer.Len()
}

// Play menambahkan s ke mixer sebagai satu voice. onEnd dipanggil sekali
// dari goroutine audio (dengan lock output dipegang) saat s habis, membawa
// s.Err(); tidak dipanggil jika voice dihentikan lewat Stop. onEnd tidak
// boleh memblok.
func (c *Context) Play(s beep.Streamer, onEnd func(error)) (*Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return nil, ErrNotInitialized
	}

	v := &Voice{out: c.out}
	v.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() {
		if onEnd != nil {
			onEnd(s.Err())
		}
	}))}

	c.out.Lock()
	c.mixer.Add(v.ctrl)
	c.out.Unlock()
	return v, nil
}

// Voice adalah satu sumber yang sedang diputar lewat Context.
type Voice struct {
	out  Output
	ctrl *beep.Ctrl
}

// Stop memutus voice dari mixer seketika. Aman dipanggil berulang.
func (v *Voice) Stop() {
	v.out.Lock()
	v.ctrl.Streamer = nil
	v.out.Unlock()
}
