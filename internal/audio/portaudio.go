package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioProvider implements CaptureProvider using PortAudio in blocking
// read mode
type PortAudioProvider struct {
	stream *portaudio.Stream
	frame  []float32
}

// NewPortAudioProvider creates a new PortAudio capture provider
func NewPortAudioProvider() *PortAudioProvider {
	return &PortAudioProvider{}
}

// Devices returns a list of available audio input devices
func (p *PortAudioProvider) Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// No default device; continue without marking one
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		// Only include devices with input channels
		if dev.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Device{
			ID:          i,
			Name:        dev.Name,
			Description: dev.HostApi.Name,
			IsDefault:   defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}

	return result, nil
}

// Open opens a mono float32 blocking-read stream on the given device.
// A device ID that is out of range or names an output-only device falls
// back to the default input.
func (p *PortAudioProvider) Open(deviceID, sampleRate, frameSize int) error {
	if p.stream != nil {
		return fmt.Errorf("capture stream already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	device, err := p.selectDevice(deviceID)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: frameSize,
	}

	p.frame = make([]float32, frameSize)
	stream, err := portaudio.OpenStream(params, p.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream on '%s': %w", device.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	return nil
}

func (p *PortAudioProvider) selectDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID >= 0 {
		devices, err := portaudio.Devices()
		if err == nil && deviceID < len(devices) && devices[deviceID].MaxInputChannels > 0 {
			return devices[deviceID], nil
		}
		// Configured device is gone or has no inputs; fall back to default
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default input device: %w", err)
	}
	return device, nil
}

// Read blocks until the next frame has been captured and copies it into
// frame. Input overflow is not an error: the device keeps running and the
// lost samples are simply absent.
func (p *PortAudioProvider) Read(frame []float32) error {
	if p.stream == nil {
		return fmt.Errorf("capture stream not open")
	}

	if err := p.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	copy(frame, p.frame)
	return nil
}

// Close stops and closes the capture stream
func (p *PortAudioProvider) Close() error {
	if p.stream == nil {
		return nil
	}

	if err := p.stream.Stop(); err != nil {
		p.stream.Close()
		p.stream = nil
		portaudio.Terminate()
		return fmt.Errorf("failed to stop stream: %w", err)
	}

	if err := p.stream.Close(); err != nil {
		p.stream = nil
		portaudio.Terminate()
		return fmt.Errorf("failed to close stream: %w", err)
	}

	p.stream = nil
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}
