package voice

import (
	"fmt"
	"log/slog"

	"hdxvoice/internal/playback"

	"github.com/faiface/beep"
)

// chunkElement adalah satu entri antrian. Chunk yang gagal di-decode tetap
// masuk dengan err terisi agar urutan FIFO tidak berubah.
type chunkElement struct {
	id       uint64
	stream   beep.StreamCloser
	format   beep.Format
	err      error
	released bool
}

// chunkPlayer memutar chunk satu per satu sesuai urutan kedatangan.
type chunkPlayer struct {
	e *Engine

	nextID  uint64
	queue   []*chunkElement
	current *chunkElement
	voice   *playback.Voice
	playing bool
}

func newChunkPlayer(e *Engine) *chunkPlayer {
	return &chunkPlayer{e: e}
}

func (p *chunkPlayer) speaking() bool { return p.playing }
func (p *chunkPlayer) sounding() bool { return p.voice != nil }

// open men-decode chunk. Aman dipanggil dari goroutine mana pun.
func (p *chunkPlayer) open(chunk, mime string) *chunkElement {
	s, format, err := p.e.decoder.OpenChunk(chunk, mime)
	if err != nil {
		p.e.log.Warn("chunk gagal di-decode", slog.String("error", err.Error()))
		return &chunkElement{err: err}
	}
	return &chunkElement{stream: s, format: format}
}

func (p *chunkPlayer) push(el *chunkElement) {
	p.nextID++
	el.id = p.nextID
	p.queue = append(p.queue, el)
	p.e.queued.Store(int64(len(p.queue)))
	if !p.playing {
		p.playNext()
	}
}

func (p *chunkPlayer) playNext() {
	e := p.e
	for len(p.queue) > 0 {
		el := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		e.queued.Store(int64(len(p.queue)))

		p.current = el
		// saat pergantian chunk sampler tetap jalan; refresh baru setelah start
		if !p.playing {
			p.playing = true
			e.refresh()
		}

		if err := p.start(el); err != nil {
			e.log.Warn("chunk dilewati", slog.Uint64("chunk", el.id), slog.String("error", err.Error()))
			p.release(el)
			p.current = nil
			continue
		}
		e.refresh()
		return
	}

	p.queue = nil
	p.current = nil
	p.playing = false
	e.refresh()
}

func (p *chunkPlayer) start(el *chunkElement) error {
	if el.err != nil {
		return el.err
	}
	e := p.e
	if err := e.ctx.EnsureRunning(); err != nil {
		return err
	}

	var s beep.Streamer = el.stream
	target := e.ctx.Format().SampleRate
	switch {
	case el.format.SampleRate <= 0:
		return fmt.Errorf("sample rate chunk tidak valid: %d", el.format.SampleRate)
	case el.format.SampleRate != target:
		s = beep.Resample(4, el.format.SampleRate, target, s)
	}

	voice, err := e.ctx.Play(s, func(err error) {
		e.loop.post(func() { p.ended(el, err) })
	})
	if err != nil {
		return err
	}
	p.voice = voice
	e.log.Debug("memutar chunk", slog.Uint64("chunk", el.id), slog.Int("queued", len(p.queue)))
	return nil
}

func (p *chunkPlayer) ended(el *chunkElement, err error) {
	if p.current != el {
		return
	}
	if err != nil {
		p.e.log.Warn("chunk berhenti dengan error", slog.Uint64("chunk", el.id), slog.String("error", err.Error()))
	}
	p.release(el)
	p.current = nil
	p.voice = nil
	p.playNext()
}

// release menutup stream chunk, tepat sekali per elemen.
func (p *chunkPlayer) release(el *chunkElement) {
	if el.released {
		return
	}
	el.released = true
	if el.stream == nil {
		return
	}
	if err := el.stream.Close(); err != nil {
		p.e.log.Warn("gagal melepas chunk", slog.Uint64("chunk", el.id), slog.String("error", err.Error()))
	}
}

func (p *chunkPlayer) stop() []*Utterance {
	if p.voice != nil {
		p.voice.Stop()
		p.voice = nil
	}
	if p.current != nil {
		p.release(p.current)
		p.current = nil
	}
	for _, el := range p.queue {
		p.release(el)
	}
	p.queue = nil
	p.playing = false
	p.e.queued.Store(0)
	return nil
}
