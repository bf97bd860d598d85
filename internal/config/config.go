package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Transcription modes.
const (
	ModeBuffered   = "buffered"
	ModeContinuous = "continuous"
)

// Output modes.
const (
	OutputType  = "type"
	OutputPaste = "paste"
)

// Settings is the persisted flat settings record. It is a plain value:
// concurrent readers hold an immutable snapshot and mutations go through
// Clone + swap (see pipeline).
type Settings struct {
	// Recognizer options.
	Temperature      float64 `toml:"temperature"`
	BeamSize         int     `toml:"beam_size"`
	EntropyThreshold float64 `toml:"entropy_threshold"`
	Language         string  `toml:"language"`
	Translate        bool    `toml:"translate"`
	ThreadCount      int     `toml:"thread_count"` // 0 = auto
	InitialPrompt    string  `toml:"initial_prompt"`

	// Voice activity detection.
	VADEnabled          bool    `toml:"vad_enabled"`
	VADSpeechThreshold  float64 `toml:"vad_speech_threshold"`
	VADSilenceThreshold float64 `toml:"vad_silence_threshold"`
	VADMinSpeechMs      int     `toml:"vad_min_speech_ms"`
	VADMinSilenceMs     int     `toml:"vad_min_silence_ms"`
	VADPrePaddingMs     int     `toml:"vad_pre_padding_ms"`
	VADPostPaddingMs    int     `toml:"vad_post_padding_ms"`

	// Text output.
	OutputMode        string `toml:"output_mode"` // "type" or "paste"
	TypeSpeedMs       int    `toml:"type_speed_ms"`
	RestoreClipboard  bool   `toml:"restore_clipboard"`
	SendReturnDelayMs int    `toml:"send_return_delay_ms"`

	// Hotkeys and recording behavior.
	Hotkey            string `toml:"hotkey"`
	SendHotkey        string `toml:"send_hotkey"`
	KeepMicWarm       bool   `toml:"keep_mic_warm"`
	TranscriptionMode string `toml:"transcription_mode"` // "buffered" or "continuous"
	ReleaseDelayMs    int    `toml:"release_delay_ms"`
	AudioDevice       int    `toml:"audio_device"` // -1 = system default

	HistoryEnabled bool `toml:"history_enabled"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		Temperature:      0.0,
		BeamSize:         5,
		EntropyThreshold: 2.4,
		Language:         "en",
		Translate:        false,
		ThreadCount:      0,

		VADEnabled:          true,
		VADSpeechThreshold:  0.007,
		VADSilenceThreshold: 0.003,
		VADMinSpeechMs:      30,
		VADMinSilenceMs:     600,
		VADPrePaddingMs:     200,
		VADPostPaddingMs:    300,

		OutputMode:        OutputType,
		TypeSpeedMs:       5,
		RestoreClipboard:  true,
		SendReturnDelayMs: 200,

		Hotkey:            "f12",
		SendHotkey:        "f11",
		KeepMicWarm:       true,
		TranscriptionMode: ModeContinuous,
		ReleaseDelayMs:    300,
		AudioDevice:       -1,

		HistoryEnabled: true,
	}
}

// Dir returns the settings directory, honoring XDG on Linux.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "speak")
}

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "settings.toml")
}

// DataDir returns the data directory for models and history.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "speak")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "speak")
}

// Load reads settings from path. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return s, nil
}

// Save writes settings to path, creating the directory if needed.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Clone returns a copy of the settings.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// Validate checks all settings fields.
func (s *Settings) Validate() error {
	if s.TranscriptionMode != ModeBuffered && s.TranscriptionMode != ModeContinuous {
		return fmt.Errorf("invalid transcription_mode: %q (must be %q or %q)",
			s.TranscriptionMode, ModeBuffered, ModeContinuous)
	}
	if s.OutputMode != OutputType && s.OutputMode != OutputPaste {
		return fmt.Errorf("invalid output_mode: %q (must be %q or %q)",
			s.OutputMode, OutputType, OutputPaste)
	}
	if s.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if s.BeamSize < 1 {
		return fmt.Errorf("invalid beam_size: %d (must be >= 1)", s.BeamSize)
	}
	if s.ThreadCount < 0 {
		return fmt.Errorf("invalid thread_count: %d (must be >= 0)", s.ThreadCount)
	}
	if s.VADSpeechThreshold <= s.VADSilenceThreshold {
		return fmt.Errorf("vad_speech_threshold (%g) must exceed vad_silence_threshold (%g)",
			s.VADSpeechThreshold, s.VADSilenceThreshold)
	}
	if s.VADSilenceThreshold < 0 {
		return fmt.Errorf("invalid vad_silence_threshold: %g (must be >= 0)", s.VADSilenceThreshold)
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"vad_min_speech_ms", s.VADMinSpeechMs},
		{"vad_min_silence_ms", s.VADMinSilenceMs},
		{"vad_pre_padding_ms", s.VADPrePaddingMs},
		{"vad_post_padding_ms", s.VADPostPaddingMs},
		{"type_speed_ms", s.TypeSpeedMs},
		{"send_return_delay_ms", s.SendReturnDelayMs},
		{"release_delay_ms", s.ReleaseDelayMs},
	} {
		if f.v < 0 {
			return fmt.Errorf("invalid %s: %d (must be >= 0)", f.name, f.v)
		}
	}
	if s.Hotkey == "" || s.SendHotkey == "" {
		return fmt.Errorf("hotkey and send_hotkey cannot be empty")
	}
	return nil
}

// ResolvedThreads returns the inference thread count, resolving 0 to a
// count derived from the machine: all cores minus two, clamped to [1, 8].
func (s *Settings) ResolvedThreads() int {
	if s.ThreadCount > 0 {
		return s.ThreadCount
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}
