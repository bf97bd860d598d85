package pipeline

// Event identifies a pipeline state transition.
type Event int

const (
	EventRecordingStarted Event = iota
	EventTranscriptionStarted
	EventTranscriptionEnded
)

func (e Event) String() string {
	switch e {
	case EventRecordingStarted:
		return "recording_started"
	case EventTranscriptionStarted:
		return "transcription_started"
	case EventTranscriptionEnded:
		return "transcription_ended"
	default:
		return "unknown"
	}
}

// Listener receives pipeline events. Callbacks run synchronously on the
// goroutine that detected the transition and must return quickly.
type Listener func(Event)

// SetListener installs the event listener. Install before the first
// recording; the field is not guarded after that.
func (p *Pipeline) SetListener(l Listener) {
	p.listener = l
}

func (p *Pipeline) emit(e Event) {
	if p.listener != nil {
		p.listener(e)
	}
}
