/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */
package main

import (
	"encoding/json"
	"log/slog"
)

func emitEvent(t string, extra map[string]interface{}) {
	stateMu.Lock()
	sink := state.EventSink
	ev := map[string]interface{}{
		"type":      t,
		"speaking":  state.Speaking,
		"amplitude": state.Amplitude,
		"queued":    engine.QueueLen(),
	}
	stateMu.Unlock()
	if sink == nil {
		return
	}

	for k, v := range extra {
		ev[k] = v
	}
	b, _ := json.Marshal(ev)
	sink("EVENT " + string(b))
}

// onSpeaking dan onAmplitude dipanggil dari loop engine.
func onSpeaking(v bool) {
	stateMu.Lock()
	state.Speaking = v
	stateMu.Unlock()

	emitEvent("SPEAKING", nil)
}

func onAmplitude(v float64) {
	stateMu.Lock()
	state.Amplitude = v
	stateMu.Unlock()

	emitEvent("AMPLITUDE", nil)
}

func cmdPlay(payload string) int {
	stateMu.Lock()
	state.Plays++
	id := state.Plays
	stateMu.Unlock()

	u := engine.Play(payload)
	go func() {
		<-u.Done()
		extra := map[string]interface{}{"play": id}
		if err := u.Err(); err != nil {
			extra["error"] = err.Error()
			log.Debug("play selesai dengan error", slog.Int("play", id), slog.String("error", err.Error()))
		}
		emitEvent("PLAY_DONE", extra)
	}()
	return id
}

func cmdEnqueue(mime, payload string) int {
	stateMu.Lock()
	state.Chunks++
	id := state.Chunks
	stateMu.Unlock()

	if mime == "-" {
		mime = ""
	}
	engine.Enqueue(payload, mime)
	return id
}

func cmdStop() {
	engine.Stop()
	emitEvent("STOPPED", nil)
}

func cmdSuspend() error {
	if err := engine.Suspend(); err != nil {
		return err
	}
	emitEvent("SUSPENDED", nil)
	return nil
}

func cmdResume() error {
	if err := engine.Resume(); err != nil {
		return err
	}
	emitEvent("RESUMED", nil)
	return nil
}
