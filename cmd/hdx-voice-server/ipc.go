/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"hdxvoice/pkg/hdx"
)

// payload base64 satu baris bisa beberapa MB
const maxLine = 32 << 20

// perintah yang mengubah playback, hanya untuk owner
var controlCommands = map[string]bool{
	"PLAY":    true,
	"ENQUEUE": true,
	"STOP":    true,
	"SUSPEND": true,
	"RESUME":  true,
	"VOLUME":  true,
}

// ===============================
// Globals
// ===============================

var (
	controlOwner net.Conn
	controlMu    sync.Mutex
)

func isOwner(c net.Conn) bool {
	controlMu.Lock()
	defer controlMu.Unlock()
	return controlOwner == c
}

func claimOwner(c net.Conn) bool {
	controlMu.Lock()
	defer controlMu.Unlock()
	if controlOwner == nil {
		controlOwner = c
		return true
	}
	return controlOwner == c
}

func releaseOwner(c net.Conn) {
	controlMu.Lock()
	owner := controlOwner == c
	if owner {
		controlOwner = nil
	}
	controlMu.Unlock()
	if !owner {
		return
	}

	stateMu.Lock()
	state.EventSink = nil
	stateMu.Unlock()
	cmdStop()
}

// eventWriter mengirim EVENT ke koneksi owner tanpa pernah memblok loop
// engine; event dibuang jika klien terlalu lambat membaca.
type eventWriter struct {
	mu     sync.Mutex
	closed bool
	ch     chan string
}

func newEventWriter(c net.Conn) *eventWriter {
	w := &eventWriter{ch: make(chan string, 256)}
	go func() {
		for msg := range w.ch {
			if _, err := c.Write([]byte(msg + "\n")); err != nil {
				return
			}
		}
	}()
	return w
}

func (w *eventWriter) send(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- msg:
	default:
	}
}

func (w *eventWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

// ===============================
// IPC Server
// ===============================

func startIPC(ctx context.Context, socketFile string) error {
	_ = os.Remove(socketFile)
	ln, err := net.Listen("unix", socketFile)
	if err != nil {
		return fmt.Errorf("listen %s: %w", socketFile, err)
	}
	defer os.Remove(socketFile)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("accept gagal", slog.String("error", err.Error()))
			continue
		}
		go handleConn(c)
	}
}

func handleConn(c net.Conn) {
	events := newEventWriter(c)
	defer func() {
		releaseOwner(c)
		events.close()
		c.Close()
	}()

	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// ==================================================
		// PARSE COMMAND: VERB + RAW ARG
		// ==================================================
		parts := strings.SplitN(line, " ", 2)
		cmd := strings.ToUpper(parts[0])

		// ==================================================
		// READ-ONLY COMMANDS (TIDAK BUTUH OWNER)
		// ==================================================
		switch cmd {

		case "ABOUT":
			fmt.Fprintf(c, "%s V.%s\n", server_name, hdx.Version)
			continue

		case "PING":
			c.Write([]byte("Pong\n"))
			continue

		case "WHOAMI":
			if isOwner(c) {
				c.Write([]byte("OWNER\n"))
			} else {
				c.Write([]byte("OBSERVER\n"))
			}
			continue

		case "STATUS":
			ctx := engine.Context()
			stateMu.Lock()
			resp := map[string]interface{}{
				"speaking":    state.Speaking,
				"amplitude":   state.Amplitude,
				"plays":       state.Plays,
				"chunks":      state.Chunks,
				"queued":      engine.QueueLen(),
				"initialized": ctx.Initialized(),
				"suspended":   ctx.Suspended(),
			}
			stateMu.Unlock()
			j, _ := json.Marshal(resp)
			c.Write(append(j, '\n'))
			continue
		}

		// ==================================================
		// CONTROL COMMANDS (BUTUH OWNER)
		// ==================================================
		if !controlCommands[cmd] {
			c.Write([]byte("ERR UNKNOWN\n"))
			continue
		}
		if !claimOwner(c) {
			c.Write([]byte("ERR CONTROL_LOCKED\n"))
			continue
		}

		stateMu.Lock()
		state.EventSink = events.send
		stateMu.Unlock()

		switch cmd {

		case "PLAY":
			if len(parts) != 2 {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			id := cmdPlay(strings.TrimSpace(parts[1]))
			fmt.Fprintf(c, "Playing %d\n", id)

		case "ENQUEUE":
			if len(parts) != 2 {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			args := strings.SplitN(strings.TrimSpace(parts[1]), " ", 2)
			if len(args) != 2 {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			id := cmdEnqueue(args[0], args[1])
			fmt.Fprintf(c, "Queued %d\n", id)

		case "STOP":
			cmdStop()
			c.Write([]byte("Stopped\n"))

		case "SUSPEND":
			if err := cmdSuspend(); err != nil {
				log.Warn("suspend gagal", slog.String("error", err.Error()))
				c.Write([]byte("ERR DEVICE\n"))
				continue
			}
			c.Write([]byte("Suspended\n"))

		case "RESUME":
			if err := cmdResume(); err != nil {
				log.Warn("resume gagal", slog.String("error", err.Error()))
				c.Write([]byte("ERR DEVICE\n"))
				continue
			}
			c.Write([]byte("Resume Playing\n"))

		case "VOLUME":
			if len(parts) != 2 {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			db, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.SetVolume(db)
			c.Write([]byte("Volume Set\n"))
		}
	}

	if err := sc.Err(); err != nil {
		log.Debug("koneksi ditutup", slog.String("error", err.Error()))
	}
}
