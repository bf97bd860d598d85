package pipeline

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yok-tottii/speak/internal/audio"
	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/recognition"
)

const (
	// monitorInterval is how often the continuous monitor samples the
	// detector and the ring
	monitorInterval = 150 * time.Millisecond
	// silenceChecksToFlush flushes after this many consecutive quiet
	// ticks, roughly half a second of pause
	silenceChecksToFlush = 3
	// bufferFullSeconds forces a flush even mid-sentence so a chunk
	// never outgrows whisper's window
	bufferFullSeconds = 25

	// contextPromptChars is the trailing slice of rolling context passed
	// as the decoding prompt
	contextPromptChars = 200
	// contextMaxChars / contextKeepChars bound the rolling context:
	// past the max it is cut back to the trailing keep span
	contextMaxChars  = 500
	contextKeepChars = 300
)

// hallucinationPatterns are whisper's stock fillers for near-silent
// audio; continuous segments containing one are dropped
var hallucinationPatterns = []string{
	"thank you", "thanks for watching", "thanks for listening",
	"please subscribe", "like and subscribe", "see you next time",
	"bye bye", "goodbye", "the end",
}

func (p *Pipeline) startMonitor() {
	p.monitorMu.Lock()
	defer p.monitorMu.Unlock()

	if p.monitorStop != nil {
		return
	}
	p.monitorStop = make(chan struct{})
	p.monitorWG.Add(1)
	go p.monitorLoop(p.monitorStop)
	p.log.Debug("continuous monitor started")
}

func (p *Pipeline) stopMonitor() {
	p.monitorMu.Lock()
	stop := p.monitorStop
	p.monitorStop = nil
	p.monitorMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	p.monitorWG.Wait()
}

// monitorLoop watches for speech pauses and flushes the collected audio
// to the recognizer while the user keeps talking.
func (p *Pipeline) monitorLoop(stop chan struct{}) {
	defer p.monitorWG.Done()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	silenceChecks := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if p.engine.VAD().IsSpeaking() {
			silenceChecks = 0
		} else {
			silenceChecks++
		}

		buffered := p.engine.Ring().Count()
		pause := buffered > 0 && silenceChecks >= silenceChecksToFlush
		full := buffered > p.engine.SampleRate()*bufferFullSeconds

		if (!pause && !full) || p.transcribing.Load() {
			continue
		}

		minRaw := continuousMinSamples * p.engine.SampleRate() / recognition.SampleRate
		if buffered < minRaw {
			continue
		}

		p.flushContinuous()
	}
}

// flushContinuous drains the ring, transcribes it primed with the rolling
// context, and injects accepted text followed by a space.
func (p *Pipeline) flushContinuous() {
	raw := p.engine.Ring().Drain()
	samples := audio.Resample(raw, p.engine.SampleRate(), recognition.SampleRate)

	p.log.Debug("continuous flush",
		logger.Int("samples", len(samples)),
		logger.Float64("seconds", float64(len(samples))/float64(recognition.SampleRate)))

	rec := p.recognizer()
	if rec == nil {
		return
	}

	p.transcribing.Store(true)
	p.emit(EventTranscriptionStarted)

	result := p.transcribe(rec, samples, p.contextPrompt())
	p.transcribing.Store(false)

	text := strings.Trim(result.FullText(), " \n")
	if text == "" || isHallucination(text) {
		if text != "" {
			p.log.Debug("filtered hallucination", logger.String("text", text))
		}
		p.emit(EventTranscriptionEnded)
		return
	}

	p.appendContext(text)
	p.perf.Record(result)
	p.outputText(text + " ")
	p.recordHistory(text, result)

	p.log.Info("continuous segment",
		logger.Int("chars", len(text)),
		logger.Int64("elapsed_ms", result.TranscriptionTimeMs),
		logger.Float64("rtf", result.RealTimeFactor()))

	p.emit(EventTranscriptionEnded)
}

// isHallucination reports whether text looks like a whisper artifact:
// shorter than three bytes after trimming, or containing a stock filler.
func isHallucination(text string) bool {
	lower := strings.Trim(strings.ToLower(text), " \n")
	if len(lower) < 3 {
		return true
	}
	for _, pattern := range hallucinationPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// contextPrompt returns the trailing slice of the rolling context, empty
// when nothing has been committed this session.
func (p *Pipeline) contextPrompt() string {
	p.contextMu.Lock()
	defer p.contextMu.Unlock()
	return tailRunes(p.context, contextPromptChars)
}

func (p *Pipeline) appendContext(text string) {
	p.contextMu.Lock()
	defer p.contextMu.Unlock()

	p.context += " " + text
	if len(p.context) > contextMaxChars {
		p.context = tailRunes(p.context, contextKeepChars)
	}
}

// tailRunes returns at most the last n bytes of s without splitting a
// multi-byte rune; the cut moves forward past continuation bytes.
func tailRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
