/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */
package main

import (
	"sync"
)

type VoiceState struct {
	Speaking  bool
	Amplitude float64
	Plays     int // jumlah PLAY sejak start
	Chunks    int // jumlah ENQUEUE sejak start
	EventSink func(string)
}

var (
	state   VoiceState
	stateMu sync.Mutex
)
