package playback

import (
	"sync"
	"time"

	"github.com/faiface/beep"
)

// Output adalah perangkat yang menarik sampel dari graph audio.
// Lock/Unlock menyerialkan akses ke graph terhadap goroutine audio.
type Output interface {
	Start(format beep.Format, s beep.Streamer) error
	Lock()
	Unlock()
	Suspend() error
	Resume() error
	Close() error
}

// NullOutput merender graph ke memori tanpa perangkat audio. Dengan tick > 0
// ia berjalan mengikuti jam dinding (headless server); dengan tick 0 graph
// hanya maju lewat Pump.
type NullOutput struct {
	mu        sync.Mutex
	tick      time.Duration
	format    beep.Format
	s         beep.Streamer
	suspended bool
	quit      chan struct{}
	wg        sync.WaitGroup
}

func NewNullOutput(tick time.Duration) *NullOutput {
	return &NullOutput{tick: tick}
}

func (o *NullOutput) Start(format beep.Format, s beep.Streamer) error {
	o.mu.Lock()
	o.format = format
	o.s = s
	o.suspended = false
	o.mu.Unlock()

	if o.tick > 0 {
		o.quit = make(chan struct{})
		o.wg.Add(1)
		go o.run(o.quit)
	}
	return nil
}

func (o *NullOutput) run(quit <-chan struct{}) {
	defer o.wg.Done()
	t := time.NewTicker(o.tick)
	defer t.Stop()

	n := o.format.SampleRate.N(o.tick)
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			o.Pump(n)
		}
	}
}

// Pump menarik n sampel dari graph dan mengembalikannya. Nil jika belum
// dimulai, sudah ditutup, atau sedang suspend.
func (o *NullOutput) Pump(n int) [][2]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s == nil || o.suspended || n <= 0 {
		return nil
	}
	buf := make([][2]float64, n)
	o.s.Stream(buf)
	return buf
}

func (o *NullOutput) Lock()   { o.mu.Lock() }
func (o *NullOutput) Unlock() { o.mu.Unlock() }

func (o *NullOutput) Suspend() error {
	o.mu.Lock()
	o.suspended = true
	o.mu.Unlock()
	return nil
}

func (o *NullOutput) Resume() error {
	o.mu.Lock()
	o.suspended = false
	o.mu.Unlock()
	return nil
}

// Suspended melaporkan status suspend, untuk test dan diagnostik.
func (o *NullOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *NullOutput) Close() error {
	if o.quit != nil {
		close(o.quit)
		o.wg.Wait()
		o.quit = nil
	}
	o.mu.Lock()
	o.s = nil
	o.mu.Unlock()
	return nil
}
