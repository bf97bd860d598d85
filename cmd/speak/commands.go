package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yok-tottii/speak/internal/audio"
	"github.com/yok-tottii/speak/internal/config"
	"github.com/yok-tottii/speak/internal/control"
	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/models"
)

// handleCommand serves one control socket command and returns the response
// text. Runs on the control server's accept goroutine.
func (a *App) handleCommand(cmd string) string {
	switch {
	case cmd == "status":
		return a.statusResponse()
	case cmd == "stop" || cmd == "quit":
		a.requestShutdown()
		return "ok"
	case cmd == "models":
		return a.modelsResponse()
	case strings.HasPrefix(cmd, "model "):
		return a.switchModel(strings.TrimSpace(strings.TrimPrefix(cmd, "model ")))
	case cmd == "continuous on":
		return a.setMode(config.ModeContinuous)
	case cmd == "continuous off":
		return a.setMode(config.ModeBuffered)
	case cmd == "mic-warm on":
		return a.setMicWarm(true)
	case cmd == "mic-warm off":
		return a.setMicWarm(false)
	case cmd == "reload":
		return a.reloadModels()
	case cmd == "history" || strings.HasPrefix(cmd, "history "):
		return a.historyResponse(strings.TrimSpace(strings.TrimPrefix(cmd, "history")))
	}
	return "error: unknown command\ncommands: status, stop, models, model <name>, continuous on|off, mic-warm on|off, reload, history [n]"
}

func (a *App) statusResponse() string {
	var b strings.Builder
	b.WriteString(string(a.pipeline.State()))
	if model, ok := a.pipeline.Models().Current(); ok {
		fmt.Fprintf(&b, "\nmodel: %s", model.Name())
	}
	fmt.Fprintf(&b, "\nmode: %s", a.pipeline.Settings().TranscriptionMode)
	perf := a.pipeline.Perf()
	fmt.Fprintf(&b, "\ntotal: %d", perf.Total())
	if perf.Total() > 0 {
		fmt.Fprintf(&b, "\navg_rtf: %.2f", perf.AverageRTF())
	}
	return b.String()
}

func (a *App) modelsResponse() string {
	available := a.pipeline.Models().Available()
	if len(available) == 0 {
		return "no models found"
	}
	current, _ := a.pipeline.Models().Current()
	var b strings.Builder
	for _, m := range available {
		marker := "  "
		if m.ID == current.ID {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s (%d MB)\n", marker, m.Name(), m.SizeMB())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) switchModel(name string) string {
	model, ok := a.pipeline.Models().Find(name)
	if !ok {
		return "error: model not found"
	}
	if err := a.pipeline.LoadModel(model); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok: loaded " + model.Name()
}

func (a *App) setMode(mode string) string {
	s := a.pipeline.UpdateSettings(func(c *config.Settings) { c.TranscriptionMode = mode })
	if err := s.Save(a.settingsPath); err != nil {
		a.log.Warn("failed to save settings", logger.Error(err))
	}
	return "ok"
}

func (a *App) setMicWarm(on bool) string {
	s := a.pipeline.UpdateSettings(func(c *config.Settings) { c.KeepMicWarm = on })
	if err := s.Save(a.settingsPath); err != nil {
		a.log.Warn("failed to save settings", logger.Error(err))
	}
	if on {
		if err := a.pipeline.Engine().Prepare(); err != nil {
			a.log.Warn("failed to warm microphone", logger.Error(err))
		}
	} else {
		a.pipeline.Engine().Release()
	}
	return "ok"
}

func (a *App) reloadModels() string {
	if err := a.pipeline.Models().Scan(); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return fmt.Sprintf("ok: %d models", a.pipeline.Models().Count())
}

func (a *App) historyResponse(arg string) string {
	if a.history == nil {
		return "error: history disabled"
	}
	limit := 10
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return "error: invalid count"
		}
		limit = n
	}
	entries, err := a.history.Recent(limit)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if len(entries) == 0 {
		return "no history"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// runControlCommand sends one command to the running daemon and prints the
// response.
func runControlCommand(cmd string) int {
	response, err := control.Send(control.SocketPath(), cmd)
	if err != nil {
		fmt.Println("error: speak not running")
		return 1
	}
	fmt.Println(response)
	if strings.HasPrefix(response, "error") {
		return 1
	}
	return 0
}

func runListDevices() int {
	devices, err := audio.NewPortAudioProvider().Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no input devices found")
		return 0
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %3d  %-40s  %s\n", marker, d.ID, d.Name, d.Description)
	}
	return 0
}

func runRemoteModels() int {
	dir := models.DefaultDir()
	for _, m := range models.Catalog() {
		marker := " "
		if _, err := os.Stat(filepath.Join(dir, m.Filename)); err == nil {
			marker = "*"
		}
		fmt.Printf("  %s %-36s %4d MB  %s\n", marker, m.Filename, m.SizeMB(), m.URL)
	}
	return 0
}

func runDownload(name string) int {
	remote, ok := models.FindRemote(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown model: %s\nAvailable:\n", name)
		for _, m := range models.Catalog() {
			fmt.Fprintf(os.Stderr, "  %s\n", m.Filename)
		}
		return 1
	}

	dest := filepath.Join(models.DefaultDir(), remote.Filename)
	if _, err := os.Stat(dest); err == nil {
		fmt.Printf("Already downloaded: %s\n", dest)
		return 0
	}

	fmt.Printf("Downloading %s (%d MB)...\n", remote.Filename, remote.SizeMB())

	lastPct := -1
	err := models.NewDownloader().Download(remote.URL, dest, func(frac float64) {
		pct := int(frac * 100)
		if pct != lastPct {
			lastPct = pct
			fmt.Printf("\r  %3d%%", pct)
		}
	})
	if err != nil {
		fmt.Printf("\r  failed: %v\n", err)
		return 1
	}
	fmt.Printf("\r  done: %s\n", dest)
	return 0
}
