package voice

import (
	"sync/atomic"
	"time"
)

// Sampler membaca kenyaringan sekali per frame selama ada audio yang
// bersuara. Tick dikirim ke loop engine; start/stop hanya dipanggil dari loop.
type Sampler struct {
	interval time.Duration
	post     func(func()) bool
	read     func() float64
	emit     func(float64)

	stopCh  chan struct{}
	epoch   uint64
	pending atomic.Bool
}

func newSampler(interval time.Duration, post func(func()) bool, read func() float64, emit func(float64)) *Sampler {
	return &Sampler{interval: interval, post: post, read: read, emit: emit}
}

func (s *Sampler) running() bool { return s.stopCh != nil }

func (s *Sampler) start() {
	if s.stopCh != nil {
		return
	}
	s.epoch++
	epoch := s.epoch
	stop := make(chan struct{})
	s.stopCh = stop

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				// satu tick saja yang boleh mengantri di loop
				if !s.pending.CompareAndSwap(false, true) {
					continue
				}
				if !s.post(func() { s.tick(epoch) }) {
					return
				}
			}
		}
	}()
}

// stop menghentikan ticker. True jika sebelumnya berjalan; pemanggil yang
// mengirim amplitudo nol terakhir.
func (s *Sampler) stop() bool {
	if s.stopCh == nil {
		return false
	}
	close(s.stopCh)
	s.stopCh = nil
	return true
}

func (s *Sampler) tick(epoch uint64) {
	s.pending.Store(false)
	if s.stopCh == nil || epoch != s.epoch {
		return
	}
	s.emit(s.read())
}
