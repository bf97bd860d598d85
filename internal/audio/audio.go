package audio

// Device represents an audio input device
type Device struct {
	ID          int
	Name        string
	Description string
	IsDefault   bool
}

// Config holds capture configuration
type Config struct {
	// DeviceID is the global input device index, -1 for the default device
	DeviceID int
	// HardwareRate is the rate requested from the device
	HardwareRate int
	// FrameSize is the number of samples per blocking read
	FrameSize int
	// TargetRate is the rate recordings are resampled to on drain
	TargetRate int
}

// DefaultConfig returns the default capture configuration
// Hardware rate: 48kHz mono (resampled to 16kHz for recognition)
// Frame size: 4096 samples (~85ms per read)
func DefaultConfig() Config {
	return Config{
		DeviceID:     -1,
		HardwareRate: 48000,
		FrameSize:    4096,
		TargetRate:   16000,
	}
}

// CaptureProvider is the interface for audio input backends.
// Read blocks until a full frame has been captured; this abstraction allows
// the engine to be tested without a sound card.
type CaptureProvider interface {
	// Open opens a mono float32 capture stream on the given device.
	// An invalid device ID falls back to the system default input.
	Open(deviceID, sampleRate, frameSize int) error

	// Read fills frame with the next captured samples, blocking until the
	// frame is complete. len(frame) must equal the frame size passed to Open.
	Read(frame []float32) error

	// Close stops and closes the capture stream
	Close() error

	// Devices returns the available audio input devices
	Devices() ([]Device, error)
}
