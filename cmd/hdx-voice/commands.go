/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hdxvoice/internal/codec"
	"hdxvoice/internal/voice"
)

// exec menjalankan satu perintah. False berarti keluar.
func (c *console) exec(args []string) bool {
	if len(args) == 0 {
		return true
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(c.out, usage)
	case "play":
		err = c.play(args[1:])
	case "queue":
		err = c.queue(args[1:])
	case "split":
		err = c.split(args[1:])
	case "opus":
		err = c.opus(args[1:])
	case "info":
		err = c.info(args[1:])
	case "stop":
		c.engine.Stop()
	case "suspend":
		err = c.engine.Suspend()
	case "resume":
		err = c.engine.Resume()
	case "volume":
		err = c.volume(args[1:])
	default:
		err = fmt.Errorf("perintah tidak dikenal: %s", args[0])
	}
	if err != nil {
		fmt.Fprintln(c.out, "[!]", err)
	}
	return true
}

func (c *console) play(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: play <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	c.watch(filepath.Base(args[0]), c.engine.Play(dataURL(data, mimeFromPath(args[0]))))
	return nil
}

func (c *console) queue(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: queue <file> [mime]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	mime := mimeFromPath(args[0])
	if len(args) == 2 {
		mime = args[1]
	}
	c.engine.Enqueue(base64.StdEncoding.EncodeToString(data), mime)
	fmt.Fprintf(c.out, "antrian: %d menunggu\n", c.engine.QueueLen())
	return nil
}

func (c *console) split(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: split <wav> <ms>")
	}
	ms, err := strconv.Atoi(args[1])
	if err != nil || ms <= 0 {
		return fmt.Errorf("durasi tidak valid: %s", args[1])
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	chunks, err := codec.SplitWAV(data, time.Duration(ms)*time.Millisecond)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		c.engine.Enqueue(base64.StdEncoding.EncodeToString(chunk), codec.MimeWAV)
	}
	fmt.Fprintf(c.out, "%d chunk diantrikan\n", len(chunks))
	return nil
}

func (c *console) opus(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: opus <wav>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	frames, seconds, err := codec.EncodeOpusFrames(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "opus: %d -> %d byte, %.2f detik\n", len(data), len(frames), seconds)
	c.watch(filepath.Base(args[0])+" (opus)", c.engine.Play(dataURL(frames, codec.MimeOpus)))
	return nil
}

func (c *console) info(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: info <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	pcm, err := codec.Decode(data, mimeFromPath(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %s, %d Hz, %d frame\n", filepath.Base(args[0]), pcm.Duration().Round(time.Millisecond), pcm.SampleRate, len(pcm.Samples))
	fmt.Fprintln(c.out, codec.Sparkline(codec.Waveform(pcm.Samples, 60)))
	return nil
}

func (c *console) volume(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: volume <db>")
	}
	db, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	c.engine.SetVolume(db)
	return nil
}

// watch melaporkan akhir ucapan tanpa menahan prompt.
func (c *console) watch(name string, u *voice.Utterance) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if err := u.Wait(ctx); err != nil {
			return
		}
		if err := u.Err(); err != nil {
			c.log.Debug("ucapan berakhir", slog.String("name", name), slog.String("error", err.Error()))
			fmt.Fprintf(c.out, "%s: %v\n", name, err)
			return
		}
		fmt.Fprintf(c.out, "%s selesai\n", name)
	}()
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return codec.MimeWAV
	case ".mp3":
		return codec.MimeMP3
	case ".opus", ".hdxo":
		return codec.MimeOpus
	}
	return ""
}

// dataURL membungkus data sebagai data URL; mime kosong berarti sniff.
func dataURL(data []byte, mime string) string {
	b64 := base64.StdEncoding.EncodeToString(data)
	if mime == "" {
		return b64
	}
	return "data:" + mime + ";base64," + b64
}
