/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"hdxvoice/internal/config"
	"hdxvoice/internal/voice"
	"hdxvoice/pkg/hdx"

	"github.com/chzyer/readline"
)

const (
	app_name           = "HDX-Voice Console"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 27/12/2025 Ebiet Version"
	prompt             = "hdx> "
)

const usage = `Perintah:
  play <file>              decode penuh lalu putar (menggantikan yang lama)
  queue <file> [mime]      masukkan file ke antrian chunk
  split <wav> <ms>         potong wav per <ms> lalu antrikan semua potongan
  opus <wav>               encode wav 48k ke frame opus HDX lalu putar
  info <file>              durasi dan waveform
  stop | suspend | resume
  volume <db>              gain master, basis 2
  help | quit`

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	fmt.Printf("\n%s V.%s\n", app_name, hdx.Version)
	fmt.Printf("%s - %s\n", developer_title, developer_subtitle)

	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(1)
	}
	defer rl.Close()

	// log lewat readline supaya prompt tidak rusak
	log := cfg.Logger(rl.Stderr())
	engine := voice.New(cfg.VoiceOptions(log))
	defer engine.Close()

	var level atomic.Uint64
	engine.OnAmplitude(func(v float64) { level.Store(math.Float64bits(v)) })
	engine.OnSpeakingChange(func(speaking bool) {
		if speaking {
			fmt.Fprintln(rl.Stdout(), "▶ bicara")
		} else {
			fmt.Fprintln(rl.Stdout(), "■ diam")
		}
	})

	if err := engine.Initialize(); err != nil {
		log.Warn("output audio belum siap", slog.String("backend", string(cfg.Backend)), slog.String("error", err.Error()))
	}

	stopMeter := make(chan struct{})
	defer close(stopMeter)
	go runMeter(rl, &level, stopMeter)

	con := &console{engine: engine, out: rl.Stdout(), log: log}
	fmt.Fprintln(rl.Stdout(), usage)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			engine.Stop()
			continue
		}
		if err != nil {
			return
		}
		if !con.exec(strings.Fields(line)) {
			fmt.Println("Bye.")
			return
		}
	}
}

// runMeter menggambar level amplitudo di prompt sekitar 15 kali per detik.
func runMeter(rl *readline.Instance, level *atomic.Uint64, stop <-chan struct{}) {
	t := time.NewTicker(66 * time.Millisecond)
	defer t.Stop()

	last := ""
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			bar := meterBar(math.Float64frombits(level.Load()), 20)
			if bar == last {
				continue
			}
			last = bar
			rl.SetPrompt(bar + " " + prompt)
			rl.Refresh()
		}
	}
}

// meterBar merender v (0..1) sebagai bar selebar width karakter.
func meterBar(v float64, width int) string {
	v = math.Max(0, math.Min(1, v))
	n := int(math.Round(v * float64(width)))
	return "[" + strings.Repeat("█", n) + strings.Repeat("·", width-n) + "]"
}

type console struct {
	engine *voice.Engine
	out    io.Writer
	log    *slog.Logger
}
