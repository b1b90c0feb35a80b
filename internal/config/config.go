package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"hdxvoice/internal/playback"
	"hdxvoice/internal/voice"
	"hdxvoice/pkg/hdx"

	"github.com/faiface/beep"
	"github.com/joho/godotenv"
)

// Backend memilih perangkat output.
type Backend string

const (
	BackendSpeaker   Backend = "speaker"
	BackendPortAudio Backend = "portaudio"
	// BackendNull merender tanpa perangkat, untuk server headless.
	BackendNull Backend = "null"
)

const envPrefix = "HDX_VOICE_"

type Config struct {
	Backend    Backend
	SampleRate int
	BufferMs   int
	FFTSize    int
	Smoothing  float64
	FrameRate  int
	VolumeDB   float64
	LogLevel   slog.Level
	Socket     string
}

// GetDefaultConfig mengembalikan nilai bawaan tanpa membaca environment.
func GetDefaultConfig() *Config {
	return &Config{
		Backend:    BackendSpeaker,
		SampleRate: hdx.SampleRate,
		BufferMs:   hdx.BufferMs,
		FFTSize:    hdx.FFTSize,
		Smoothing:  hdx.Smoothing,
		FrameRate:  hdx.FrameRate,
		LogLevel:   slog.LevelInfo,
		Socket:     "/tmp/hdx-voice.sock",
	}
}

// LoadConfig membaca file .env (boleh tidak ada) lalu variabel HDX_VOICE_*.
// Variabel yang sudah di-set di environment tidak ditimpa .env.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv membangun Config dari environment proses saja.
func FromEnv() (*Config, error) {
	cfg := GetDefaultConfig()

	if v, ok := lookup("BACKEND"); ok {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v, ok := lookup("SOCKET"); ok {
		cfg.Socket = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SAMPLE_RATE", &cfg.SampleRate},
		{"BUFFER_MS", &cfg.BufferMs},
		{"FFT_SIZE", &cfg.FFTSize},
		{"FRAME_RATE", &cfg.FrameRate},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", envPrefix, f.key, err)
		}
		*f.dst = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"SMOOTHING", &cfg.Smoothing},
		{"VOLUME_DB", &cfg.VolumeDB},
	}
	for _, f := range floats {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", envPrefix, f.key, err)
		}
		*f.dst = x
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSpeaker, BackendPortAudio, BackendNull:
	default:
		return fmt.Errorf("backend %q tidak dikenal (speaker|portaudio|null)", c.Backend)
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample rate %d di luar 8000..192000", c.SampleRate)
	}
	if c.BufferMs < 10 || c.BufferMs > 1000 {
		return fmt.Errorf("buffer %dms di luar 10..1000", c.BufferMs)
	}
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft size %d bukan pangkat dua 32..32768", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing %.2f di luar [0,1]", c.Smoothing)
	}
	if c.FrameRate < 1 || c.FrameRate > 240 {
		return fmt.Errorf("frame rate %d di luar 1..240", c.FrameRate)
	}
	if c.Socket == "" {
		return errors.New("socket path kosong")
	}
	return nil
}

// Buffer adalah panjang buffer perangkat output.
func (c *Config) Buffer() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

func (c *Config) Format() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(c.SampleRate), NumChannels: hdx.Channels, Precision: 2}
}

// NewOutput membuat perangkat output sesuai Backend.
func (c *Config) NewOutput() playback.Output {
	switch c.Backend {
	case BackendPortAudio:
		return playback.NewPortAudioOutput(c.Format().SampleRate.N(c.Buffer()))
	case BackendNull:
		return playback.NewNullOutput(c.Buffer())
	default:
		return playback.NewSpeakerOutput(c.Buffer())
	}
}

// Logger membuat handler teks ke w pada level yang dikonfigurasi.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

// VoiceOptions merangkai opsi engine dari konfigurasi.
func (c *Config) VoiceOptions(log *slog.Logger) voice.Options {
	return voice.Options{
		Playback: playback.Options{
			Format:    c.Format(),
			FFTSize:   c.FFTSize,
			Smoothing: c.Smoothing,
			VolumeDB:  c.VolumeDB,
			NewOutput: c.NewOutput,
			Logger:    log,
		},
		FrameInterval: hdx.FrameInterval(c.FrameRate),
		Logger:        log,
	}
}
