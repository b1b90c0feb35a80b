package main

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"hdxvoice/internal/playback"
	"hdxvoice/internal/voice"
)

func setupServer(t *testing.T) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	log = quiet
	engine = voice.New(voice.Options{
		Playback: playback.Options{
			NewOutput: func() playback.Output { return playback.NewNullOutput(0) },
		},
		Logger: quiet,
	})
	engine.OnAmplitude(onAmplitude)
	engine.OnSpeakingChange(onSpeaking)
	t.Cleanup(engine.Close)

	controlMu.Lock()
	controlOwner = nil
	controlMu.Unlock()
	stateMu.Lock()
	state = VoiceState{}
	stateMu.Unlock()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T) *testClient {
	t.Helper()
	server, client := net.Pipe()
	go handleConn(server)
	t.Cleanup(func() { client.Close() })
	client.SetDeadline(time.Now().Add(5 * time.Second))
	return &testClient{t: t, conn: client, r: bufio.NewReader(client)}
}

// line membaca baris berikutnya, termasuk EVENT.
func (c *testClient) line() string {
	c.t.Helper()
	s, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return strings.TrimSpace(s)
}

// send mengirim perintah dan mengembalikan balasan pertama yang bukan EVENT.
func (c *testClient) send(cmd string) string {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	for {
		if s := c.line(); !strings.HasPrefix(s, "EVENT ") {
			return s
		}
	}
}

func TestReadOnlyCommands(t *testing.T) {
	setupServer(t)
	c := dial(t)

	if got := c.send("ping"); got != "Pong" {
		t.Fatalf("PING: %q", got)
	}
	if got := c.send("ABOUT"); got != "HDX-Voice V.1.0.0" {
		t.Fatalf("ABOUT: %q", got)
	}
	if got := c.send("WHOAMI"); got != "OBSERVER" {
		t.Fatalf("WHOAMI: %q", got)
	}

	var status map[string]interface{}
	if err := json.Unmarshal([]byte(c.send("STATUS")), &status); err != nil {
		t.Fatalf("STATUS: %v", err)
	}
	if status["speaking"] != false || status["queued"] != float64(0) {
		t.Fatalf("unexpected status: %v", status)
	}
}

func TestControlIsOwnerOnly(t *testing.T) {
	setupServer(t)
	owner := dial(t)
	other := dial(t)

	if got := owner.send("STOP"); got != "Stopped" {
		t.Fatalf("STOP: %q", got)
	}
	if got := owner.send("WHOAMI"); got != "OWNER" {
		t.Fatalf("WHOAMI: %q", got)
	}
	if got := other.send("STOP"); got != "ERR CONTROL_LOCKED" {
		t.Fatalf("expected lock, got %q", got)
	}
	if got := other.send("PING"); got != "Pong" {
		t.Fatalf("observer keeps read access, got %q", got)
	}

	owner.conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for other.send("STOP") != "Stopped" {
		if time.Now().After(deadline) {
			t.Fatal("ownership was not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayReportsDoneEvent(t *testing.T) {
	setupServer(t)
	c := dial(t)

	if got := c.send("PLAY"); got != "ERR ARG" {
		t.Fatalf("PLAY without payload: %q", got)
	}
	if got := c.send("ENQUEUE wav"); got != "ERR ARG" {
		t.Fatalf("ENQUEUE without payload: %q", got)
	}
	// balasan dan EVENT ditulis dari goroutine berbeda, urutannya bebas
	if _, err := c.conn.Write([]byte("PLAY AAAA\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	replied, done := false, false
	for !replied || !done {
		s := c.line()
		if !strings.HasPrefix(s, "EVENT ") {
			if s != "Playing 1" {
				t.Fatalf("PLAY: %q", s)
			}
			replied = true
			continue
		}
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(s, "EVENT ")), &ev); err != nil {
			t.Fatalf("event json: %v", err)
		}
		if ev["type"] != "PLAY_DONE" {
			continue
		}
		if ev["play"] != float64(1) || ev["error"] == nil {
			t.Fatalf("expected failed play 1, got %v", ev)
		}
		done = true
	}
}

func TestUnknownCommand(t *testing.T) {
	setupServer(t)
	c := dial(t)
	if got := c.send("DANCE"); got != "ERR UNKNOWN" {
		t.Fatalf("got %q", got)
	}
	// verb tak dikenal tidak boleh mengambil kontrol
	if got := c.send("WHOAMI"); got != "OBSERVER" {
		t.Fatalf("unknown verb claimed ownership: %q", got)
	}
	other := dial(t)
	if got := other.send("STOP"); got != "Stopped" {
		t.Fatalf("control must still be free, got %q", got)
	}
	if got := c.send("DANCE"); got != "ERR UNKNOWN" {
		t.Fatalf("got %q", got)
	}
	other.conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for c.send("STOP") != "Stopped" {
		if time.Now().After(deadline) {
			t.Fatal("ownership was not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.send("VOLUME loud"); got != "ERR ARG" {
		t.Fatalf("got %q", got)
	}
	if got := c.send("VOLUME -1"); got != "Volume Set" {
		t.Fatalf("got %q", got)
	}
}
