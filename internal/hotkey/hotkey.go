package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates a hotkey went down
	Pressed EventType = iota
	// Released indicates a hotkey came back up
	Released
)

// Event represents one hotkey transition. Send marks the
// transcribe-and-send key rather than the plain push-to-talk key.
type Event struct {
	Type EventType
	Send bool
}

// Config holds the two registered keys
type Config struct {
	// Key is the push-to-talk key
	Key hotkey.Key
	// SendKey is the push-to-talk key that also presses Return after the
	// text is delivered
	SendKey hotkey.Key
}

// DefaultConfig returns the default key bindings (F12 talk, F11 talk+send)
func DefaultConfig() Config {
	return Config{
		Key:     hotkey.KeyF12,
		SendKey: hotkey.KeyF11,
	}
}

// Manager registers the global hotkeys and forwards their press/release
// transitions over one event channel
type Manager struct {
	main      *hotkey.Hotkey
	send      *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with the default bindings
func New() *Manager {
	return &Manager{
		config:    DefaultConfig(),
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers both hotkeys with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkeys already registered, call Close() first")
	}

	m.config = config

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	main := hotkey.New(nil, config.Key)
	if err := main.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	send := hotkey.New(nil, config.SendKey)
	if err := send.Register(); err != nil {
		main.Unregister()
		return fmt.Errorf("failed to register send hotkey: %w", err)
	}

	m.main = main
	m.send = send
	m.running = true

	m.wg.Add(1)
	go m.listen()

	return nil
}

// listen forwards key transitions from both hotkeys to the event channel
func (m *Manager) listen() {
	defer m.wg.Done()

	for {
		select {
		case <-m.main.Keydown():
			m.forward(Event{Type: Pressed})
		case <-m.main.Keyup():
			m.forward(Event{Type: Released})
		case <-m.send.Keydown():
			m.forward(Event{Type: Pressed, Send: true})
		case <-m.send.Keyup():
			m.forward(Event{Type: Released, Send: true})
		case <-m.stopChan:
			return
		}
	}
}

// forward delivers an event unless Close is already draining the manager,
// so a full channel can never wedge shutdown.
func (m *Manager) forward(e Event) {
	select {
	case m.eventChan <- e:
	case <-m.stopChan:
	}
}

// Events returns the channel hotkey transitions are delivered on
func (m *Manager) Events() <-chan Event {
	return m.eventChan
}

// Close unregisters both hotkeys and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	if m.main != nil {
		if err := m.main.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
	}
	if m.send != nil {
		if err := m.send.Unregister(); err != nil && unregisterErr == nil {
			unregisterErr = fmt.Errorf("failed to unregister send hotkey: %w", err)
		}
	}

	if m.eventChan != nil {
		close(m.eventChan)
		m.eventChan = nil
	}

	// The running flag clears even when Unregister fails, so a later
	// Register() stays possible.
	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkeys are currently registered
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns the current key bindings
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}
