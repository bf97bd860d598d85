package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/yok-tottii/speak/internal/audio"
	"github.com/yok-tottii/speak/internal/config"
	"github.com/yok-tottii/speak/internal/control"
	"github.com/yok-tottii/speak/internal/history"
	"github.com/yok-tottii/speak/internal/hotkey"
	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/models"
	"github.com/yok-tottii/speak/internal/output"
	"github.com/yok-tottii/speak/internal/pipeline"
)

const version = "0.9.0"

func init() {
	// X11 key grabs and input simulation need a stable OS thread
	runtime.LockOSThread()
}

// App holds the daemon's collaborators for the lifetime of a run.
type App struct {
	log          *logger.Logger
	settingsPath string
	pipeline     *pipeline.Pipeline
	injector     output.Injector
	hotkeys      *hotkey.Manager
	control      *control.Server
	history      *history.Store

	quitOnce sync.Once
	quit     chan struct{}
}

func main() {
	// Bare words go to the running daemon: "speak status", "speak model Base".
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		os.Exit(runControlCommand(strings.Join(os.Args[1:], " ")))
	}
	os.Exit(run())
}

func run() int {
	var (
		modelPath    = flag.String("model", "", "")
		continuous   = flag.Bool("continuous", false, "")
		buffered     = flag.Bool("buffered", false, "")
		warm         = flag.Bool("warm", false, "")
		noWarm       = flag.Bool("no-warm", false, "")
		typeMode     = flag.Bool("type", false, "")
		pasteMode    = flag.Bool("paste", false, "")
		threads      = flag.Int("threads", 0, "")
		lang         = flag.String("lang", "", "")
		noVAD        = flag.Bool("no-vad", false, "")
		device       = flag.Int("device", -1, "")
		verbose      = flag.Bool("verbose", false, "")
		listDevices  = flag.Bool("devices", false, "")
		remoteModels = flag.Bool("remote-models", false, "")
		download     = flag.String("download", "", "")
		bench        = flag.String("bench", "", "")
		showVersion  = flag.Bool("version", false, "")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "error: unexpected argument %q\n", flag.Arg(0))
		usage()
		return 2
	}

	switch {
	case *showVersion:
		fmt.Printf("speak %s\n", version)
		return 0
	case *listDevices:
		return runListDevices()
	case *remoteModels:
		return runRemoteModels()
	case *download != "":
		return runDownload(*download)
	}

	logCfg := logger.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	settingsPath := config.DefaultPath()
	settings, err := config.Load(settingsPath)
	if err != nil {
		log.Error("failed to load settings", logger.Error(err))
		return 1
	}

	// Only flags the user actually passed override the settings file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "continuous":
			if *continuous {
				settings.TranscriptionMode = config.ModeContinuous
			}
		case "buffered":
			if *buffered {
				settings.TranscriptionMode = config.ModeBuffered
			}
		case "warm":
			if *warm {
				settings.KeepMicWarm = true
			}
		case "no-warm":
			if *noWarm {
				settings.KeepMicWarm = false
			}
		case "type":
			if *typeMode {
				settings.OutputMode = config.OutputType
			}
		case "paste":
			if *pasteMode {
				settings.OutputMode = config.OutputPaste
			}
		case "threads":
			settings.ThreadCount = *threads
		case "lang":
			settings.Language = *lang
		case "no-vad":
			if *noVAD {
				settings.VADEnabled = false
			}
		case "device":
			settings.AudioDevice = *device
		}
	})

	if err := settings.Validate(); err != nil {
		log.Error("invalid settings", logger.Error(err))
		return 1
	}

	if *bench != "" {
		return runBenchmark(*bench, settings)
	}

	return runDaemon(settings, settingsPath, *modelPath, log)
}

func runDaemon(settings *config.Settings, settingsPath, modelPath string, log *logger.Logger) int {
	log.Info("starting speak", logger.String("version", version))

	app := &App{
		log:          log,
		settingsPath: settingsPath,
		quit:         make(chan struct{}),
	}

	if settings.HistoryEnabled {
		store, err := history.Open(history.DefaultPath())
		if err != nil {
			log.Warn("history unavailable", logger.Error(err))
		} else {
			app.history = store
			defer store.Close()
		}
	}

	audioCfg := audio.DefaultConfig()
	audioCfg.DeviceID = settings.AudioDevice
	engine := audio.NewEngine(audioCfg, audio.NewPortAudioProvider(), pipeline.VADConfig(settings), log.Named("audio"))

	manager := models.NewManager(models.DefaultDir(), models.DefaultSelectionFile())
	app.injector = output.New()
	app.pipeline = pipeline.New(settings, engine, manager, app.injector, app.history, log.Named("pipeline"))
	defer app.pipeline.Shutdown()

	app.control = control.NewServer(control.SocketPath(), app.handleCommand, log.Named("control"))
	if err := app.control.Start(); err != nil {
		log.Error("failed to start control server", logger.Error(err))
		return 1
	}
	defer app.control.Stop()

	mainKey, err := hotkey.ParseKey(settings.Hotkey)
	if err != nil {
		log.Error("invalid hotkey", logger.Error(err))
		return 1
	}
	sendKey, err := hotkey.ParseKey(settings.SendHotkey)
	if err != nil {
		log.Error("invalid send hotkey", logger.Error(err))
		return 1
	}
	app.hotkeys = hotkey.New()
	if err := app.hotkeys.Register(hotkey.Config{Key: mainKey, SendKey: sendKey}); err != nil {
		log.Error("failed to register hotkeys (is X11 running?)", logger.Error(err))
		return 1
	}
	defer app.hotkeys.Close()

	if settings.KeepMicWarm {
		if err := engine.Prepare(); err != nil {
			log.Warn("microphone not available yet", logger.Error(err))
		}
	}

	if modelPath != "" {
		info, err := os.Stat(modelPath)
		if err != nil {
			log.Error("model file not found", logger.String("path", modelPath))
			fmt.Fprintln(os.Stderr, "Download one with: speak -download tiny.en")
			return 1
		}
		model := models.Model{
			ID:   strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
			Path: modelPath,
			Size: info.Size(),
		}
		if err := app.pipeline.LoadModel(model); err != nil {
			log.Error("failed to load model", logger.Error(err))
			return 1
		}
	} else {
		if err := manager.Scan(); err != nil {
			log.Error("failed to scan models", logger.Error(err))
			return 1
		}
		if manager.Count() == 0 {
			log.Error("no models found", logger.String("dir", manager.Dir()))
			fmt.Fprintln(os.Stderr, "Download one with: speak -download tiny.en")
			return 1
		}
		if err := app.pipeline.LoadSavedOrFirst(); err != nil {
			// Daemon stays up; a model can be loaded over the control socket.
			log.Warn("no model loaded", logger.Error(err))
		}
	}

	log.Info("ready",
		logger.String("hold", strings.ToUpper(settings.Hotkey)),
		logger.String("send", strings.ToUpper(settings.SendHotkey)),
		logger.String("mode", settings.TranscriptionMode))

	return app.eventLoop()
}

func (a *App) eventLoop() int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			a.log.Info("shutting down", logger.String("signal", sig.String()))
			return 0
		case <-a.quit:
			a.log.Info("shutting down")
			return 0
		case ev := <-a.hotkeys.Events():
			a.handleHotkey(ev)
		}
	}
}

func (a *App) handleHotkey(ev hotkey.Event) {
	switch ev.Type {
	case hotkey.Pressed:
		if err := a.pipeline.StartRecording(); err != nil {
			a.log.Error("failed to start recording", logger.Error(err))
		}
	case hotkey.Released:
		// Off the event loop so a slow transcription never delays the
		// next key press.
		go a.finishRecording(ev.Send)
	}
}

func (a *App) finishRecording(send bool) {
	s := a.pipeline.Settings()

	// Keep capturing briefly after key-up so trailing speech is not clipped
	time.Sleep(time.Duration(s.ReleaseDelayMs) * time.Millisecond)

	a.pipeline.StopAndTranscribe()

	if send && a.pipeline.DidOutput() {
		time.Sleep(time.Duration(s.SendReturnDelayMs) * time.Millisecond)
		if err := a.injector.PressReturn(); err != nil {
			a.log.Error("failed to press return", logger.Error(err))
		}
	}
}

func (a *App) requestShutdown() {
	a.quitOnce.Do(func() { close(a.quit) })
}

func usage() {
	fmt.Fprintf(os.Stderr, `speak %s - push-to-talk dictation for Linux

Usage:
  speak [flags]             run the daemon
  speak <command>           talk to the running daemon

Flags:
  -model path       whisper model file (default: saved selection or smallest local model)
  -continuous       transcribe during pauses while the key is held
  -buffered         transcribe once when the key is released
  -type             output text as simulated keystrokes (default)
  -paste            output text via clipboard paste
  -warm             keep the microphone stream open between recordings
  -no-warm          open the microphone only while recording
  -threads n        whisper threads (default: auto)
  -lang code        spoken language, e.g. "en" (default: en)
  -no-vad           disable voice activity detection
  -device n         audio input device id (see -devices)
  -verbose          debug logging
  -version          print version and exit

Standalone:
  -devices          list audio input devices
  -remote-models    list downloadable models
  -download name    download a model, e.g. "tiny.en" or "large-v3-turbo"
  -bench path       benchmark a model file with synthesized audio

Daemon commands:
  status, stop, models, model <name>, continuous on|off,
  mic-warm on|off, reload, history [n]

Hold F12 to dictate, F11 to dictate and send with Enter.
Models live in %s.
`, version, models.DefaultDir())
}
