package output

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

const (
	// clipboardSettle is how long the clipboard gets to propagate before
	// the paste keystroke is sent
	clipboardSettle = 10 * time.Millisecond
	// restoreDelay is how long the paste target gets to read the
	// clipboard before the previous content is put back
	restoreDelay = 500 * time.Millisecond
	// returnDelay lets the focused application finish inserting text
	// before Enter is pressed
	returnDelay = 50 * time.Millisecond
)

// Injector delivers transcribed text into the focused application
type Injector interface {
	// Type injects text as simulated keystrokes with delayMs between
	// characters
	Type(text string, delayMs int) error

	// Paste places text on the clipboard and sends Ctrl+V, optionally
	// restoring the previous clipboard content afterwards
	Paste(text string, restoreClipboard bool) error

	// PressReturn taps Enter
	PressReturn() error
}

// RobotgoInjector implements Injector with simulated input events
type RobotgoInjector struct{}

// New creates a new robotgo-backed injector
func New() *RobotgoInjector {
	return &RobotgoInjector{}
}

// Type injects text one character at a time, sleeping delayMs between
// characters. A zero delay sends the whole text in one burst.
func (i *RobotgoInjector) Type(text string, delayMs int) error {
	if text == "" {
		return nil
	}

	if delayMs <= 0 {
		robotgo.TypeStr(text)
		return nil
	}

	for _, r := range text {
		robotgo.TypeStr(string(r))
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
	}
	return nil
}

// Paste copies text to the clipboard and sends Ctrl+V. With restoreClipboard
// the previous content is saved first and put back once the paste has had
// time to land; restoration is skipped when the original content cannot be
// read (empty or unavailable clipboard).
func (i *RobotgoInjector) Paste(text string, restoreClipboard bool) error {
	if text == "" {
		return nil
	}

	saved := ""
	hasSaved := false
	if restoreClipboard {
		if prev, err := robotgo.ReadAll(); err == nil {
			saved = prev
			hasSaved = true
		}
	}

	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	time.Sleep(clipboardSettle)

	if err := robotgo.KeyTap("v", "ctrl"); err != nil {
		return fmt.Errorf("failed to send paste keystroke: %w", err)
	}

	if hasSaved {
		time.Sleep(restoreDelay)
		if err := robotgo.WriteAll(saved); err != nil {
			return fmt.Errorf("failed to restore clipboard: %w", err)
		}
	}
	return nil
}

// PressReturn taps Enter after a short settle delay
func (i *RobotgoInjector) PressReturn() error {
	time.Sleep(returnDelay)
	if err := robotgo.KeyTap("enter"); err != nil {
		return fmt.Errorf("failed to press return: %w", err)
	}
	return nil
}
