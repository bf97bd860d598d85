package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yok-tottii/speak/internal/audio"
	"github.com/yok-tottii/speak/internal/config"
	"github.com/yok-tottii/speak/internal/control"
	"github.com/yok-tottii/speak/internal/history"
	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/models"
	"github.com/yok-tottii/speak/internal/output"
	"github.com/yok-tottii/speak/internal/pipeline"
)

// silentProvider is a capture backend that produces silence, so handler
// tests run without a sound card.
type silentProvider struct{}

func (silentProvider) Open(deviceID, sampleRate, frameSize int) error { return nil }

func (silentProvider) Read(frame []float32) error {
	time.Sleep(time.Millisecond)
	for i := range frame {
		frame[i] = 0
	}
	return nil
}

func (silentProvider) Close() error { return nil }

func (silentProvider) Devices() ([]audio.Device, error) { return nil, nil }

type nullInjector struct{}

func (nullInjector) Type(string, int) error   { return nil }
func (nullInjector) Paste(string, bool) error { return nil }
func (nullInjector) PressReturn() error       { return nil }

var _ output.Injector = nullInjector{}

// newTestApp builds an App whose collaborators all live in a temp dir.
// History is off; tests that need it attach a store themselves.
func newTestApp(t *testing.T) (*App, string) {
	t.Helper()

	settings := config.Default()
	settings.HistoryEnabled = false
	settings.KeepMicWarm = false

	dir := t.TempDir()

	audioCfg := audio.Config{
		DeviceID:     -1,
		HardwareRate: 16000,
		FrameSize:    480,
		TargetRate:   16000,
	}
	engine := audio.NewEngine(audioCfg, silentProvider{}, pipeline.VADConfig(settings), logger.Nop())
	manager := models.NewManager(filepath.Join(dir, "models"), filepath.Join(dir, "selected_model"))

	app := &App{
		log:          logger.Nop(),
		settingsPath: filepath.Join(dir, "settings.toml"),
		injector:     nullInjector{},
		quit:         make(chan struct{}),
	}
	app.pipeline = pipeline.New(settings, engine, manager, app.injector, nil, logger.Nop())
	t.Cleanup(app.pipeline.Shutdown)

	return app, dir
}

func TestStatusFreshDaemon(t *testing.T) {
	app, _ := newTestApp(t)

	got := app.handleCommand("status")
	want := "idle\nmode: continuous\ntotal: 0"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestUnknownCommand(t *testing.T) {
	app, _ := newTestApp(t)

	got := app.handleCommand("bogus")
	if !strings.HasPrefix(got, "error: unknown command") {
		t.Errorf("Expected unknown command error, got %q", got)
	}
	for _, name := range []string{"status", "model <name>", "mic-warm on|off", "history [n]"} {
		if !strings.Contains(got, name) {
			t.Errorf("Expected command list to mention %q, got %q", name, got)
		}
	}
}

func TestContinuousTogglePersists(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("continuous off"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
	if mode := app.pipeline.Settings().TranscriptionMode; mode != config.ModeBuffered {
		t.Errorf("Expected buffered mode, got %q", mode)
	}

	saved, err := config.Load(app.settingsPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if saved.TranscriptionMode != config.ModeBuffered {
		t.Errorf("Expected buffered mode persisted, got %q", saved.TranscriptionMode)
	}

	if got := app.handleCommand("continuous on"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
	if got := app.handleCommand("status"); !strings.Contains(got, "mode: continuous") {
		t.Errorf("Expected status to report continuous mode, got %q", got)
	}
}

func TestModelsEmpty(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("models"); got != "no models found" {
		t.Errorf("Expected no models found, got %q", got)
	}
}

func TestReloadAndModelListing(t *testing.T) {
	app, dir := newTestApp(t)

	modelsDir := filepath.Join(dir, "models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	write := func(name string, size int) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(modelsDir, name), make([]byte, size), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	write("ggml-base.bin", 200)
	write("ggml-tiny.en.bin", 100)
	write("notes.txt", 10)

	if got := app.handleCommand("reload"); got != "ok: 2 models" {
		t.Errorf("Expected ok: 2 models, got %q", got)
	}

	got := app.handleCommand("models")
	want := "  Tiny English (0 MB)\n  Base (0 MB)"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSwitchModelNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("model Nonexistent"); got != "error: model not found" {
		t.Errorf("Expected model not found error, got %q", got)
	}
}

func TestMicWarmToggle(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("mic-warm on"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
	if !app.pipeline.Engine().IsPrepared() {
		t.Error("Expected engine prepared after mic-warm on")
	}
	if !app.pipeline.Settings().KeepMicWarm {
		t.Error("Expected keep_mic_warm enabled")
	}

	if got := app.handleCommand("mic-warm off"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
	if app.pipeline.Engine().IsPrepared() {
		t.Error("Expected engine released after mic-warm off")
	}

	saved, err := config.Load(app.settingsPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if saved.KeepMicWarm {
		t.Error("Expected keep_mic_warm disabled in saved settings")
	}
}

func TestHistoryDisabled(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("history"); got != "error: history disabled" {
		t.Errorf("Expected history disabled error, got %q", got)
	}
}

func TestHistoryListing(t *testing.T) {
	app, dir := newTestApp(t)

	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	app.history = store

	for _, text := range []string{"first entry", "second entry", "third entry"} {
		if err := store.Record(history.Entry{
			Text:      text,
			Mode:      "buffered",
			Model:     "tiny",
			AudioMs:   1200,
			ElapsedMs: 150,
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got := app.handleCommand("history")
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 history lines, got %d: %q", len(lines), got)
	}
	if !strings.Contains(lines[0], "third entry") {
		t.Errorf("Expected newest entry first, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[0], "[") {
		t.Errorf("Expected timestamp prefix, got %q", lines[0])
	}

	got = app.handleCommand("history 1")
	if strings.Count(got, "\n") != 0 || !strings.Contains(got, "third entry") {
		t.Errorf("Expected single newest entry, got %q", got)
	}

	if got := app.handleCommand("history zero"); got != "error: invalid count" {
		t.Errorf("Expected invalid count error, got %q", got)
	}
	if got := app.handleCommand("history 0"); got != "error: invalid count" {
		t.Errorf("Expected invalid count error, got %q", got)
	}
}

func TestStopCommandRequestsShutdown(t *testing.T) {
	app, _ := newTestApp(t)

	if got := app.handleCommand("stop"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
	select {
	case <-app.quit:
	default:
		t.Fatal("Expected quit channel closed after stop")
	}

	if got := app.handleCommand("quit"); got != "ok" {
		t.Fatalf("Expected ok, got %q", got)
	}
}

func TestControlRoundTrip(t *testing.T) {
	app, dir := newTestApp(t)

	sock := filepath.Join(dir, "speak.sock")
	srv := control.NewServer(sock, app.handleCommand, logger.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Stop)

	got, err := control.Send(sock, "status")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got != "idle\nmode: continuous\ntotal: 0" {
		t.Errorf("Expected fresh status, got %q", got)
	}

	got, err = control.Send(sock, "nonsense")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.HasPrefix(got, "error: unknown command") {
		t.Errorf("Expected unknown command error, got %q", got)
	}
}
