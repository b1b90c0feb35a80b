/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hdxvoice/internal/config"
	"hdxvoice/internal/voice"
	"hdxvoice/pkg/hdx"
)

const server_name = "HDX-Voice"

var (
	engine *voice.Engine
	log    = slog.Default()
)

func main() {
	envFile := flag.String("env", "", "file .env tambahan")
	showVersion := flag.Bool("version", false, "tampilkan versi lalu keluar")
	flag.Parse()

	if *showVersion {
		fmt.Println(hdx.Version)
		return
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.LoadConfig(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log = cfg.Logger(os.Stderr).With(slog.String("component", "server"))

	engine = voice.New(cfg.VoiceOptions(cfg.Logger(os.Stderr)))
	engine.OnAmplitude(onAmplitude)
	engine.OnSpeakingChange(onSpeaking)
	defer engine.Close()

	// output yang gagal dibuka dicoba lagi oleh PLAY/ENQUEUE berikutnya
	if err := engine.Initialize(); err != nil {
		log.Warn("output audio belum siap", slog.String("backend", string(cfg.Backend)), slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("server berjalan", slog.String("socket", cfg.Socket), slog.String("backend", string(cfg.Backend)))
	if err := startIPC(ctx, cfg.Socket); err != nil {
		log.Error("ipc berhenti", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("shutdown selesai")
}
