/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX (Hardix Audio) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bufio"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"hdxvoice/internal/config"
	"hdxvoice/pkg/hdx"

	"github.com/chzyer/readline"
)

const (
	app_name        = "HDX-Voice-Client"
	developer_title = "Developer Hardiyanto"
	maxLine         = 32 << 20
)

func main() {
	socket := flag.String("socket", "", "path unix socket (default dari HDX_VOICE_SOCKET)")
	quiet := flag.Bool("quiet", false, "sembunyikan EVENT AMPLITUDE")
	flag.Parse()

	if *socket == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		*socket = cfg.Socket
	}

	fmt.Printf("\n%s V.%s\n", app_name, hdx.Version)
	fmt.Printf("%s\n", developer_title)
	conn, err := net.Dial("unix", *socket)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	rl, err := readline.NewEx(&readline.Config{Prompt: "hdx> ", HistoryFile: historyFile()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), "CONNECTED", *socket)
	fmt.Fprintln(rl.Stdout(), `Argumen "@file" dikirim sebagai base64 isi file. Ketik "QUIT" untuk keluar`)

	// ============================
	// IPC → STDOUT
	// ============================
	go func() {
		sc := bufio.NewScanner(conn)
		sc.Buffer(make([]byte, 64*1024), maxLine)
		for sc.Scan() {
			line := sc.Text()
			if *quiet && strings.Contains(line, `"type":"AMPLITUDE"`) {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "RECV:", line)
		}
		fmt.Fprintln(rl.Stdout(), "SOCKET CLOSED")
		rl.Close()
	}()

	// ============================
	// STDIN → IPC
	// ============================
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			fmt.Println("Bye.")
			return
		}

		msg, err := expandFiles(line)
		if err != nil {
			fmt.Fprintln(rl.Stdout(), "ERR:", err)
			continue
		}
		if _, err := io.WriteString(conn, msg+"\n"); err != nil {
			fmt.Fprintln(rl.Stdout(), "WRITE ERROR:", err)
			return
		}
	}
}

// expandFiles mengganti setiap kata "@path" dengan base64 isi file.
func expandFiles(line string) (string, error) {
	words := strings.Fields(line)
	for i, w := range words {
		if len(w) < 2 || w[0] != '@' {
			continue
		}
		data, err := os.ReadFile(w[1:])
		if err != nil {
			return "", err
		}
		words[i] = base64.StdEncoding.EncodeToString(data)
	}
	return strings.Join(words, " "), nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hdx-voice-history")
}
