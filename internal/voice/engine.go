// Package voice menggabungkan dua jalur playback (decode penuh dan antrian
// chunk streaming) di atas satu playback.Context, lengkap dengan notifikasi
// status bicara dan amplitudo untuk visual.
package voice

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hdxvoice/internal/codec"
	"hdxvoice/internal/playback"
	"hdxvoice/pkg/audioengine"
	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
)

// Decoder mengubah payload base64 menjadi audio yang siap diputar.
type Decoder interface {
	// DecodeBuffer men-decode payload utuh dan me-resample ke format.
	DecodeBuffer(payload string, format beep.Format) (*beep.Buffer, error)
	// OpenChunk membuka satu chunk sebagai stream yang wajib di-Close.
	OpenChunk(payload, mime string) (beep.StreamCloser, beep.Format, error)
}

type codecDecoder struct{}

func (codecDecoder) DecodeBuffer(payload string, format beep.Format) (*beep.Buffer, error) {
	return codec.DecodeBuffer(payload, format)
}

func (codecDecoder) OpenChunk(payload, mime string) (beep.StreamCloser, beep.Format, error) {
	return codec.OpenChunk(payload, mime)
}

type Options struct {
	Playback playback.Options
	// FrameInterval adalah periode sampling amplitudo. Default 1/60 detik.
	FrameInterval time.Duration
	Loudness      audioengine.LoudnessParams
	Decoder       Decoder
	Logger        *slog.Logger
}

// pipeline adalah satu jalur playback yang berbagi Context dan notifikasi.
type pipeline interface {
	// speaking: ada pekerjaan yang dianggap bersuara, termasuk yang masih decode.
	speaking() bool
	// sounding: ada voice yang benar-benar terpasang di mixer.
	sounding() bool
	// stop menghentikan semuanya tanpa notifikasi dan mengembalikan
	// ucapan yang perlu diselesaikan.
	stop() []*Utterance
}

// Engine adalah fasad playback suara. Semua state dimiliki satu goroutine
// loop; callback OnAmplitude dan OnSpeakingChange dipanggil dari loop itu
// secara berurutan dan tidak boleh memanggil Stop/Close secara sinkron.
type Engine struct {
	log      *slog.Logger
	ctx      *playback.Context
	loop     *loop
	decoder  Decoder
	loudness audioengine.LoudnessParams

	immediate *immediatePlayer
	chunks    *chunkPlayer
	pipelines []pipeline
	sampler   *Sampler

	cbMu        sync.Mutex
	onAmplitude func(float64)
	onSpeaking  func(bool)

	// milik loop
	speaking bool
	bins     []uint8

	speakingFlag atomic.Bool
	queued       atomic.Int64
	closed       atomic.Bool
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Playback.Logger == nil {
		opts.Playback.Logger = log
	}
	if opts.Playback.Smoothing == 0 {
		opts.Playback.Smoothing = hdx.Smoothing
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = hdx.FrameInterval(hdx.FrameRate)
	}
	if opts.Loudness == (audioengine.LoudnessParams{}) {
		opts.Loudness = audioengine.DefaultLoudness
	}
	if opts.Decoder == nil {
		opts.Decoder = codecDecoder{}
	}

	e := &Engine{
		log:      log.With(slog.String("component", "voice")),
		ctx:      playback.NewContext(opts.Playback),
		loop:     newLoop(),
		decoder:  opts.Decoder,
		loudness: opts.Loudness,
	}
	e.immediate = newImmediatePlayer(e)
	e.chunks = newChunkPlayer(e)
	e.pipelines = []pipeline{e.immediate, e.chunks}
	e.sampler = newSampler(opts.FrameInterval, e.loop.post, e.sample, e.emitAmplitude)
	return e
}

// OnAmplitude mendaftarkan penerima amplitudo 0..1. Nil menghapus.
func (e *Engine) OnAmplitude(f func(float64)) {
	e.cbMu.Lock()
	e.onAmplitude = f
	e.cbMu.Unlock()
}

// OnSpeakingChange mendaftarkan penerima transisi bicara. Nil menghapus.
func (e *Engine) OnSpeakingChange(f func(bool)) {
	e.cbMu.Lock()
	e.onSpeaking = f
	e.cbMu.Unlock()
}

// Context mengembalikan playback.Context milik engine.
func (e *Engine) Context() *playback.Context { return e.ctx }

// Initialize menyiapkan graph output. Idempoten.
func (e *Engine) Initialize() error { return e.ctx.Initialize() }

// Suspend menghentikan perangkat sementara; Play/Enqueue berikutnya
// melanjutkannya otomatis.
func (e *Engine) Suspend() error { return e.ctx.Suspend() }

// Resume melanjutkan graph yang suspend.
func (e *Engine) Resume() error { return e.ctx.EnsureRunning() }

// SetVolume mengubah gain master dalam dB basis 2.
func (e *Engine) SetVolume(db float64) { e.ctx.SetVolume(db) }

// Speaking melaporkan status bicara terakhir yang sudah diumumkan.
func (e *Engine) Speaking() bool { return e.speakingFlag.Load() }

// QueueLen adalah jumlah chunk yang menunggu, tidak termasuk yang sedang diputar.
func (e *Engine) QueueLen() int { return int(e.queued.Load()) }

// Play men-decode payload utuh lalu memutarnya, menggantikan ucapan
// sebelumnya. Utterance selesai setelah notifikasi berhenti bicara.
func (e *Engine) Play(payload string) *Utterance {
	u := newUtterance()
	if !e.loop.post(func() { e.immediate.play(u, payload) }) {
		u.resolve(ErrClosed)
	}
	return u
}

// Enqueue men-decode chunk di goroutine pemanggil lalu memasukkannya ke
// antrian FIFO. Chunk yang gagal tetap menempati antrian dan dilewati.
// mime kosong berarti ikut data URL atau audio/wav.
func (e *Engine) Enqueue(chunk, mime string) {
	el := e.chunks.open(chunk, mime)
	if !e.loop.post(func() { e.chunks.push(el) }) {
		e.chunks.release(el)
	}
}

// Stop menghentikan kedua jalur seketika. Selalu diakhiri amplitudo 0 dan
// notifikasi berhenti bicara.
func (e *Engine) Stop() {
	e.loop.call(e.stopAll)
}

// Teardown menghentikan semuanya lalu melepas graph output.
func (e *Engine) Teardown() {
	if !e.loop.call(func() {
		e.stopAll()
		e.ctx.Teardown()
	}) {
		e.ctx.Teardown()
	}
}

// Close melakukan Teardown lalu menghentikan loop. Play sesudahnya selesai
// dengan ErrClosed.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.Teardown()
	e.loop.close()
}

func (e *Engine) stopAll() {
	var interrupted []*Utterance
	for _, p := range e.pipelines {
		interrupted = append(interrupted, p.stop()...)
	}
	e.sampler.stop()
	e.setSpeaking(false)
	e.emitAmplitude(0)
	e.emitSpeaking(false)
	for _, u := range interrupted {
		u.resolve(ErrInterrupted)
	}
}

// refresh menyelaraskan sampler dan status bicara dengan kedua jalur.
// Dipanggil setiap kali salah satu jalur berubah.
func (e *Engine) refresh() {
	sounding, speaking := false, false
	for _, p := range e.pipelines {
		sounding = sounding || p.sounding()
		speaking = speaking || p.speaking()
	}

	zeroed := false
	if sounding {
		e.sampler.start()
	} else if e.sampler.stop() {
		e.emitAmplitude(0)
		zeroed = true
	}

	if speaking == e.speaking {
		return
	}
	e.setSpeaking(speaking)
	if !speaking && !zeroed {
		e.emitAmplitude(0)
	}
	e.emitSpeaking(speaking)
}

func (e *Engine) setSpeaking(v bool) {
	e.speaking = v
	e.speakingFlag.Store(v)
}

func (e *Engine) sample() float64 {
	a := e.ctx.Analyser()
	if a == nil {
		return 0
	}
	if n := a.FrequencyBinCount(); len(e.bins) != n {
		e.bins = make([]uint8, n)
	}
	a.ByteFrequencyData(e.bins)
	return e.loudness.Loudness(e.bins)
}

func (e *Engine) emitAmplitude(v float64) {
	e.cbMu.Lock()
	f := e.onAmplitude
	e.cbMu.Unlock()
	if f != nil {
		f(v)
	}
}

func (e *Engine) emitSpeaking(v bool) {
	e.cbMu.Lock()
	f := e.onSpeaking
	e.cbMu.Unlock()
	if f != nil {
		f(v)
	}
}
