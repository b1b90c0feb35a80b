package voice

import (
	"log/slog"

	"hdxvoice/internal/playback"

	"github.com/faiface/beep"
)

// immediatePlayer memutar satu payload utuh. Paling banyak satu sumber aktif;
// permintaan baru menggantikan yang lama begitu decode-nya selesai.
type immediatePlayer struct {
	e *Engine

	seq     uint64
	pending map[*Utterance]uint64
	source  *immediateSource
}

type immediateSource struct {
	voice *playback.Voice
	utt   *Utterance
	seq   uint64
}

func newImmediatePlayer(e *Engine) *immediatePlayer {
	return &immediatePlayer{e: e, pending: make(map[*Utterance]uint64)}
}

func (p *immediatePlayer) speaking() bool { return p.source != nil || len(p.pending) > 0 }
func (p *immediatePlayer) sounding() bool { return p.source != nil }

func (p *immediatePlayer) play(u *Utterance, payload string) {
	e := p.e
	if err := e.ctx.EnsureRunning(); err != nil {
		e.log.Warn("context audio tidak bisa dijalankan", slog.String("error", err.Error()))
	}

	p.seq++
	seq := p.seq
	p.pending[u] = seq
	// status bicara diumumkan sebelum decode selesai
	e.refresh()

	format := e.ctx.Format()
	go func() {
		buf, err := e.decoder.DecodeBuffer(payload, format)
		if !e.loop.post(func() { p.decoded(u, seq, buf, err) }) {
			u.resolve(ErrClosed)
		}
	}()
}

func (p *immediatePlayer) decoded(u *Utterance, seq uint64, buf *beep.Buffer, err error) {
	e := p.e
	if _, ok := p.pending[u]; !ok {
		// dibatalkan Stop selama decode
		return
	}
	delete(p.pending, u)

	if err != nil {
		e.log.Warn("decode audio gagal", slog.String("error", err.Error()))
		e.refresh()
		u.resolve(err)
		return
	}
	if p.source != nil && p.source.seq > seq {
		// permintaan yang lebih baru sudah diputar duluan
		e.refresh()
		u.resolve(ErrInterrupted)
		return
	}

	prev := p.discard()
	if err := e.ctx.EnsureRunning(); err != nil {
		e.log.Warn("context audio tidak bisa dijalankan", slog.String("error", err.Error()))
	}
	voice, err := e.ctx.Play(buf.Streamer(0, buf.Len()), func(err error) {
		e.loop.post(func() { p.ended(u, err) })
	})
	if err != nil {
		e.log.Warn("playback gagal dimulai", slog.String("error", err.Error()))
		e.refresh()
		resolve(prev, ErrInterrupted)
		u.resolve(err)
		return
	}

	p.source = &immediateSource{voice: voice, utt: u, seq: seq}
	e.log.Debug("memutar audio", slog.Duration("duration", e.ctx.Format().SampleRate.D(buf.Len())))
	e.refresh()
	resolve(prev, ErrInterrupted)
}

func (p *immediatePlayer) ended(u *Utterance, err error) {
	if p.source == nil || p.source.utt != u {
		return
	}
	p.source = nil
	if err != nil {
		p.e.log.Warn("stream audio berhenti dengan error", slog.String("error", err.Error()))
	}
	p.e.refresh()
	u.resolve(err)
}

// discard memutus sumber aktif tanpa notifikasi dan mengembalikan ucapannya.
func (p *immediatePlayer) discard() *Utterance {
	if p.source == nil {
		return nil
	}
	p.source.voice.Stop()
	u := p.source.utt
	p.source = nil
	return u
}

func (p *immediatePlayer) stop() []*Utterance {
	var out []*Utterance
	if u := p.discard(); u != nil {
		out = append(out, u)
	}
	for u := range p.pending {
		out = append(out, u)
	}
	clear(p.pending)
	return out
}

func resolve(u *Utterance, err error) {
	if u != nil {
		u.resolve(err)
	}
}
