package voice

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"hdxvoice/internal/codec"
	"hdxvoice/internal/playback"

	"github.com/faiface/beep"
)

var testFormat = beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}

// idle membuat sampler praktis tidak pernah tick.
const idle = time.Hour

// fakeDecoder memahami payload "<nama> <nilai> <jumlah sampel>" dan
// "noise <jumlah sampel>". Decode bisa ditahan untuk mensimulasikan decode lambat.
type fakeDecoder struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	closes map[string]int
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{gates: map[string]chan struct{}{}, closes: map[string]int{}}
}

func (d *fakeDecoder) hold(payload string) (release func()) {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gates[payload] = ch
	d.mu.Unlock()
	return func() { close(ch) }
}

func (d *fakeDecoder) closed(payload string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes[payload]
}

func (d *fakeDecoder) DecodeBuffer(payload string, format beep.Format) (*beep.Buffer, error) {
	d.mu.Lock()
	gate := d.gates[payload]
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s, err := parsePayload(payload)
	if err != nil {
		return nil, err
	}
	buf := beep.NewBuffer(format)
	buf.Append(s)
	return buf, nil
}

func (d *fakeDecoder) OpenChunk(payload, mime string) (beep.StreamCloser, beep.Format, error) {
	s, err := parsePayload(payload)
	if err != nil {
		return nil, beep.Format{}, err
	}
	return &closerStream{Streamer: s, onClose: func() {
		d.mu.Lock()
		d.closes[payload]++
		d.mu.Unlock()
	}}, testFormat, nil
}

type closerStream struct {
	beep.Streamer
	onClose func()
}

func (c *closerStream) Close() error {
	c.onClose()
	return nil
}

func parsePayload(payload string) (beep.Streamer, error) {
	var n int
	if strings.HasPrefix(payload, "noise") {
		if _, err := fmt.Sscanf(payload, "noise %d", &n); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(1))
		return beep.Take(n, beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
			for i := range samples {
				v := rng.Float64() - 0.5
				samples[i] = [2]float64{v, v}
			}
			return len(samples), true
		})), nil
	}

	var name string
	var v float64
	if _, err := fmt.Sscanf(payload, "%s %f %d", &name, &v, &n); err != nil {
		return nil, fmt.Errorf("payload %q: %w", payload, codec.ErrUnsupportedFormat)
	}
	return beep.Take(n, beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})), nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
	amps   []float64
}

func (r *recorder) amplitude(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.amps = append(r.amps, v)
	if v == 0 {
		r.events = append(r.events, "amp0")
	}
}

func (r *recorder) speaking(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v {
		r.events = append(r.events, "start")
	} else {
		r.events = append(r.events, "stop")
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) amplitudes() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.amps...)
}

func newTestEngine(t *testing.T, dec Decoder, frame time.Duration) (*Engine, *playback.NullOutput, *recorder) {
	t.Helper()
	var out *playback.NullOutput
	e := New(Options{
		Playback: playback.Options{
			Format: testFormat,
			NewOutput: func() playback.Output {
				out = playback.NewNullOutput(0)
				return out
			},
		},
		FrameInterval: frame,
		Decoder:       dec,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(e.Close)

	rec := &recorder{}
	e.OnAmplitude(rec.amplitude)
	e.OnSpeakingChange(rec.speaking)
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return e, out, rec
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout menunggu %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// flush menunggu semua pekerjaan loop yang sudah diantrikan.
func flush(e *Engine) { e.loop.call(func() {}) }

// step memajukan output n sampel lalu menunggu loop memproses akibatnya.
func step(e *Engine, out *playback.NullOutput, n int) [][2]float64 {
	buf := out.Pump(n)
	flush(e)
	return buf
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func isDone(u *Utterance) bool {
	select {
	case <-u.Done():
		return true
	default:
		return false
	}
}

func assertEvents(t *testing.T, rec *recorder, want ...string) {
	t.Helper()
	got := rec.snapshot()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v, want %v", got, want)
	}
}

func TestPlayResolvesAfterStoppedNotification(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	var u *Utterance
	resolvedEarly := false
	e.OnSpeakingChange(func(v bool) {
		rec.speaking(v)
		if !v && isDone(u) {
			resolvedEarly = true
		}
	})

	u = e.Play("x 0.5 400")
	eventually(t, func() bool { return e.ctx.Voices() == 1 }, "voice terpasang")
	if !e.Speaking() {
		t.Fatal("expected speaking")
	}

	buf := step(e, out, 100)
	if !near(buf[0][0], 0.5) {
		t.Fatalf("expected audio, got %v", buf[0][0])
	}
	step(e, out, 400)
	eventually(t, func() bool { return isDone(u) }, "utterance selesai")

	if u.Err() != nil {
		t.Fatalf("unexpected error: %v", u.Err())
	}
	if resolvedEarly {
		t.Fatal("utterance resolved before the stopped notification")
	}
	assertEvents(t, rec, "start", "amp0", "stop")
	if e.Speaking() {
		t.Fatal("expected not speaking")
	}
}

func TestPlayPreemptsPrevious(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	x := e.Play("x 0.5 100000")
	eventually(t, func() bool { return e.ctx.Voices() == 1 }, "x terpasang")
	step(e, out, 10)

	y := e.Play("y 0.25 200")
	eventually(t, func() bool { return isDone(x) }, "x diinterupsi")
	if !errors.Is(x.Err(), ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", x.Err())
	}

	buf := step(e, out, 50)
	if !near(buf[0][0], 0.25) || e.ctx.Voices() != 1 {
		t.Fatalf("expected only y audible, got %v with %d voices", buf[0][0], e.ctx.Voices())
	}
	assertEvents(t, rec, "start")

	step(e, out, 200)
	eventually(t, func() bool { return isDone(y) }, "y selesai")
	assertEvents(t, rec, "start", "amp0", "stop")
}

func TestStaleDecodeIsDropped(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	release := dec.hold("x 0.5 1000")
	x := e.Play("x 0.5 1000")
	y := e.Play("y 0.25 1000")
	eventually(t, func() bool { return e.ctx.Voices() == 1 }, "y terpasang")

	release()
	eventually(t, func() bool { return isDone(x) }, "x selesai")
	if !errors.Is(x.Err(), ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", x.Err())
	}

	buf := step(e, out, 10)
	if !near(buf[0][0], 0.25) {
		t.Fatalf("expected y audio only, got %v", buf[0][0])
	}
	if isDone(y) {
		t.Fatal("y must keep playing")
	}
	assertEvents(t, rec, "start")
}

func TestStopDuringDecode(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	release := dec.hold("x 0.5 1000")
	x := e.Play("x 0.5 1000")
	eventually(t, e.Speaking, "status bicara optimistis")

	e.Stop()
	if !isDone(x) || !errors.Is(x.Err(), ErrInterrupted) {
		t.Fatalf("expected x interrupted, got %v", x.Err())
	}
	assertEvents(t, rec, "start", "amp0", "stop")

	release()
	time.Sleep(10 * time.Millisecond)
	flush(e)
	if e.ctx.Voices() != 0 {
		t.Fatal("late decode must not start playback")
	}
	if buf := step(e, out, 10); buf[0][0] != 0 {
		t.Fatalf("expected silence, got %v", buf[0][0])
	}
	assertEvents(t, rec, "start", "amp0", "stop")
}

func TestStopNotifiesFromEveryState(t *testing.T) {
	dec := newFakeDecoder()

	t.Run("idle", func(t *testing.T) {
		e, _, rec := newTestEngine(t, dec, idle)
		e.Stop()
		e.Stop()
		assertEvents(t, rec, "amp0", "stop", "amp0", "stop")
	})

	t.Run("immediate", func(t *testing.T) {
		e, out, rec := newTestEngine(t, dec, idle)
		u := e.Play("x 0.5 1000")
		eventually(t, func() bool { return e.ctx.Voices() == 1 }, "voice terpasang")
		e.Stop()
		if !errors.Is(u.Err(), ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", u.Err())
		}
		if buf := step(e, out, 10); buf[0][0] != 0 {
			t.Fatalf("expected silence, got %v", buf[0][0])
		}
		assertEvents(t, rec, "start", "amp0", "stop")
	})

	t.Run("chunks", func(t *testing.T) {
		e, out, rec := newTestEngine(t, dec, idle)
		e.Enqueue("a 0.1 1000", "")
		e.Enqueue("b 0.2 1000", "")
		flush(e)
		e.Stop()
		if e.QueueLen() != 0 || e.Speaking() {
			t.Fatal("expected empty queue after stop")
		}
		if buf := step(e, out, 10); buf[0][0] != 0 {
			t.Fatalf("expected silence, got %v", buf[0][0])
		}
		assertEvents(t, rec, "start", "amp0", "stop")
	})
}

func TestChunksPlayInOrder(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	e.Enqueue("a 0.1 100", "")
	e.Enqueue("b 0.2 100", "")
	e.Enqueue("c 0.3 100", "")
	flush(e)
	if e.QueueLen() != 2 {
		t.Fatalf("expected 2 waiting, got %d", e.QueueLen())
	}

	var heard []float64
	for i := 0; i < 3; i++ {
		buf := step(e, out, 100)
		heard = append(heard, buf[0][0])
		if buf[99][0] != buf[0][0] {
			t.Fatalf("chunk %d overlapped: %v", i, buf[99][0])
		}
		// tick berikutnya menutup chunk yang sudah habis
		step(e, out, 1)
	}
	if !near(heard[0], 0.1) || !near(heard[1], 0.2) || !near(heard[2], 0.3) {
		t.Fatalf("unexpected order: %v", heard)
	}
	for _, p := range []string{"a 0.1 100", "b 0.2 100", "c 0.3 100"} {
		if n := dec.closed(p); n != 1 {
			t.Fatalf("%q released %d times", p, n)
		}
	}
	assertEvents(t, rec, "start", "amp0", "stop")
}

// samplerState membaca status sampler dari dalam loop.
func samplerState(e *Engine) (running bool, epoch uint64) {
	e.loop.call(func() {
		running, epoch = e.sampler.running(), e.sampler.epoch
	})
	return running, epoch
}

func TestSamplerSurvivesChunkHandoff(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	if running, _ := samplerState(e); running {
		t.Fatal("sampler must not run while idle")
	}

	e.Enqueue("a 0.1 100", "")
	e.Enqueue("rusak", "")
	e.Enqueue("b 0.2 100", "")
	flush(e)
	running, epoch := samplerState(e)
	if !running {
		t.Fatal("expected sampler running during chunk a")
	}

	step(e, out, 100)
	step(e, out, 1)
	if buf := step(e, out, 10); !near(buf[0][0], 0.2) {
		t.Fatalf("expected b after a, got %v", buf[0][0])
	}
	assertEvents(t, rec, "start")
	if r, ep := samplerState(e); !r || ep != epoch {
		t.Fatalf("sampler restarted across handoff: running=%v epoch %d -> %d", r, epoch, ep)
	}

	step(e, out, 100)
	assertEvents(t, rec, "start", "amp0", "stop")
	if running, _ := samplerState(e); running {
		t.Fatal("sampler must stop after drain")
	}
}

func TestChunkWaitsForPrevious(t *testing.T) {
	dec := newFakeDecoder()
	e, out, _ := newTestEngine(t, dec, idle)

	e.Enqueue("a 0.1 300", "")
	flush(e)
	step(e, out, 100)

	e.Enqueue("b 0.2 300", "")
	flush(e)
	if e.QueueLen() != 1 {
		t.Fatalf("expected b waiting, got %d", e.QueueLen())
	}
	if buf := step(e, out, 100); !near(buf[0][0], 0.1) || e.ctx.Voices() != 1 {
		t.Fatalf("b must not start before a ends: %v", buf[0][0])
	}

	step(e, out, 100)
	step(e, out, 1)
	if buf := step(e, out, 10); !near(buf[0][0], 0.2) {
		t.Fatalf("expected b after a, got %v", buf[0][0])
	}
}

func TestBadChunkDoesNotBlockQueue(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, idle)

	e.Enqueue("a 0.1 100", "")
	e.Enqueue("rusak", "")
	e.Enqueue("c 0.3 100", "")
	flush(e)
	if e.QueueLen() != 2 {
		t.Fatalf("failed chunk keeps its slot, got %d waiting", e.QueueLen())
	}

	step(e, out, 100)
	step(e, out, 1)
	if buf := step(e, out, 10); !near(buf[0][0], 0.3) {
		t.Fatalf("expected c after a, got %v", buf[0][0])
	}
	step(e, out, 100)
	assertEvents(t, rec, "start", "amp0", "stop")
}

func TestStopReleasesEveryChunk(t *testing.T) {
	dec := newFakeDecoder()
	e, out, _ := newTestEngine(t, dec, idle)

	chunks := []string{"a 0.1 1000", "b 0.2 1000", "c 0.3 1000"}
	for _, c := range chunks {
		e.Enqueue(c, "")
	}
	flush(e)
	step(e, out, 10)
	e.Stop()
	e.Stop()

	for _, c := range chunks {
		if n := dec.closed(c); n != 1 {
			t.Fatalf("%q released %d times", c, n)
		}
	}

	e.Enqueue("d 0.4 100", "")
	flush(e)
	if buf := step(e, out, 10); !near(buf[0][0], 0.4) {
		t.Fatalf("queue must accept chunks after stop, got %v", buf[0][0])
	}
}

func TestEmptyPayloadIsSkipped(t *testing.T) {
	e, out, rec := newTestEngine(t, nil, idle)

	u := e.Play("")
	eventually(t, func() bool { return isDone(u) }, "play kosong selesai")
	if !errors.Is(u.Err(), codec.ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", u.Err())
	}
	assertEvents(t, rec, "start", "amp0", "stop")

	wav, err := codec.EncodeWAV(constantFrames(80, 8000), 8000, 2)
	if err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	e.Enqueue("", "")
	e.Enqueue(base64.StdEncoding.EncodeToString(wav), "audio/wav")
	flush(e)

	buf := step(e, out, 10)
	if buf[0][0] <= 0 {
		t.Fatalf("expected wav chunk audible after the empty one, got %v", buf[0][0])
	}
}

func constantFrames(frames, value int) []int {
	samples := make([]int, frames*2)
	for i := range samples {
		samples[i] = value
	}
	return samples
}

func TestAmplitudeStaysInRange(t *testing.T) {
	dec := newFakeDecoder()
	e, out, rec := newTestEngine(t, dec, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	if len(rec.amplitudes()) != 0 {
		t.Fatal("sampler must not run while idle")
	}

	e.Play("noise 100000")
	eventually(t, func() bool { return e.ctx.Voices() == 1 }, "noise terpasang")
	eventually(t, func() bool {
		out.Pump(256)
		for _, v := range rec.amplitudes() {
			if v > 0 {
				return true
			}
		}
		return false
	}, "amplitudo aktif")

	e.Stop()
	amps := rec.amplitudes()
	for _, v := range amps {
		if v < 0 || v > 1 {
			t.Fatalf("amplitude %v out of range", v)
		}
	}
	if amps[len(amps)-1] != 0 {
		t.Fatalf("expected final amplitude 0, got %v", amps[len(amps)-1])
	}

	n := len(amps)
	time.Sleep(10 * time.Millisecond)
	if len(rec.amplitudes()) != n {
		t.Fatal("sampler must stop with playback")
	}
}

func TestPlayResumesSuspendedContext(t *testing.T) {
	dec := newFakeDecoder()
	e, out, _ := newTestEngine(t, dec, idle)

	if err := e.Suspend(); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if !out.Suspended() {
		t.Fatal("expected suspended output")
	}

	e.Play("x 0.5 100")
	eventually(t, func() bool { return !out.Suspended() }, "output di-resume")
}

func TestClosedEngine(t *testing.T) {
	dec := newFakeDecoder()
	e, _, _ := newTestEngine(t, dec, idle)
	e.Close()

	u := e.Play("x 0.5 100")
	if !isDone(u) || !errors.Is(u.Err(), ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", u.Err())
	}

	e.Enqueue("a 0.1 100", "")
	if n := dec.closed("a 0.1 100"); n != 1 {
		t.Fatalf("chunk enqueued after close must be released, got %d", n)
	}
	e.Stop()
}
