package voice

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInterrupted: ucapan dihentikan Stop atau digantikan Play yang lebih baru.
	ErrInterrupted = errors.New("ucapan diinterupsi")
	// ErrClosed: engine sudah ditutup.
	ErrClosed = errors.New("engine sudah ditutup")
)

// Utterance adalah handle satu permintaan Play. Ia selesai tepat sekali:
// saat audio habis, gagal di-decode, diinterupsi, atau engine ditutup.
type Utterance struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newUtterance() *Utterance {
	return &Utterance{done: make(chan struct{})}
}

func (u *Utterance) resolve(err error) {
	u.once.Do(func() {
		u.err = err
		close(u.done)
	})
}

// Done tertutup saat ucapan selesai.
func (u *Utterance) Done() <-chan struct{} { return u.done }

// Err menjelaskan kenapa ucapan berakhir lebih awal; nil untuk akhir normal.
// Hanya untuk diagnostik: kegagalan tidak pernah fatal bagi engine.
func (u *Utterance) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Wait menunggu ucapan selesai atau ctx habis. Hanya mengembalikan error ctx.
func (u *Utterance) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
