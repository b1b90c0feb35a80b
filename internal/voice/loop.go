package voice

import "sync"

// loop adalah satu-satunya konteks eksekusi engine: semua perubahan state
// dan semua callback ke pemanggil berjalan berurutan di goroutine ini.
// post tidak pernah memblok sehingga aman dipanggil dari goroutine audio.
type loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newLoop() *loop {
	l := &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// post mengantrikan f. False jika loop sudah ditutup.
func (l *loop) post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// call menjalankan f di loop dan menunggu selesai. Jangan dipanggil dari
// dalam loop sendiri.
func (l *loop) call(f func()) bool {
	done := make(chan struct{})
	if !l.post(func() {
		defer close(done)
		f()
	}) {
		return false
	}
	<-done
	return true
}

func (l *loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, f := range tasks {
			f()
		}
		if len(tasks) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// close menolak post baru, menjalankan sisa antrian lalu berhenti.
func (l *loop) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}
