package output

import (
	"testing"
)

func TestNew(t *testing.T) {
	injector := New()

	if injector == nil {
		t.Fatal("Expected injector to be created")
	}
}

func TestTypeEmptyText(t *testing.T) {
	injector := New()

	if err := injector.Type("", 5); err != nil {
		t.Errorf("Expected nil error for empty text, got: %v", err)
	}
}

func TestPasteEmptyText(t *testing.T) {
	injector := New()

	if err := injector.Paste("", true); err != nil {
		t.Errorf("Expected nil error for empty text, got: %v", err)
	}
}

// Note: Tests that inject real keystrokes or touch the clipboard require an
// active desktop session and would type into whatever window has focus, so
// they are not included in unit tests.
