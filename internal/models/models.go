package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yok-tottii/speak/internal/config"
)

// Model is one locally installed whisper model file
type Model struct {
	// ID is the file name without the .bin extension, e.g. "ggml-base.en"
	ID   string
	Path string
	Size int64
}

// Name returns the human-readable display name
func (m Model) Name() string {
	return DisplayName(m.ID)
}

// SizeMB returns the file size in whole megabytes
func (m Model) SizeMB() int64 {
	return m.Size / 1000000
}

// DisplayName turns a model file name into a readable label:
// "ggml-base.en" becomes "Base English", "ggml-large-v3-turbo-q5_0"
// becomes "Large V3 Turbo (Q5)".
func DisplayName(id string) string {
	name := strings.ReplaceAll(id, "ggml-", "")
	name = strings.ReplaceAll(name, ".bin", "")
	name = strings.ReplaceAll(name, "-q5_0", " (Q5)")
	name = strings.ReplaceAll(name, "-q8_0", " (Q8)")
	name = strings.ReplaceAll(name, "-q5_1", " (Q5.1)")

	if strings.HasSuffix(name, ".en") {
		name = strings.TrimSuffix(name, ".en") + " English"
	}

	var b strings.Builder
	capNext := true
	for _, c := range name {
		if c == '-' {
			b.WriteRune(' ')
			capNext = true
			continue
		}
		if capNext && c >= 'a' && c <= 'z' {
			b.WriteRune(c - 32)
		} else {
			b.WriteRune(c)
		}
		capNext = false
	}
	return b.String()
}

// DefaultDir returns the models directory under the data directory
func DefaultDir() string {
	return filepath.Join(config.DataDir(), "models")
}

// DefaultSelectionFile returns the file the active model ID is persisted in
func DefaultSelectionFile() string {
	return filepath.Join(config.Dir(), "selected_model")
}

// Manager tracks locally installed models and the active selection.
// Safe for concurrent use; the control socket rescans while
// transcription reads the active model.
type Manager struct {
	dir           string
	selectionFile string

	mu      sync.Mutex
	models  []Model
	current int
}

// NewManager creates a manager over the given models directory. Call Scan
// to populate it.
func NewManager(dir, selectionFile string) *Manager {
	return &Manager{
		dir:           dir,
		selectionFile: selectionFile,
		current:       -1,
	}
}

// Scan rebuilds the model list from the models directory, smallest model
// first. The active selection is cleared until the next load.
func (m *Manager) Scan() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read models directory: %w", err)
	}

	var found []Model
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".bin" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, Model{
			ID:   strings.TrimSuffix(entry.Name(), ".bin"),
			Path: filepath.Join(m.dir, entry.Name()),
			Size: info.Size(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Size < found[j].Size
	})

	m.mu.Lock()
	m.models = found
	m.current = -1
	m.mu.Unlock()
	return nil
}

// Dir returns the models directory
func (m *Manager) Dir() string {
	return m.dir
}

// Available returns a snapshot of the scanned models
func (m *Manager) Available() []Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Model, len(m.models))
	copy(out, m.models)
	return out
}

// Count returns the number of scanned models
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.models)
}

// Current returns the active model, if one has been loaded
func (m *Manager) Current() (Model, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 || m.current >= len(m.models) {
		return Model{}, false
	}
	return m.models[m.current], true
}

// Find matches a model by display name or ID
func (m *Manager) Find(name string) (Model, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(name)
}

func (m *Manager) findLocked(name string) (Model, bool) {
	for _, model := range m.models {
		if model.Name() == name || model.ID == name {
			return model, true
		}
	}
	return Model{}, false
}

// MarkLoaded records the model as the active selection and persists the
// choice for the next start.
func (m *Manager) MarkLoaded(id string) error {
	m.mu.Lock()
	m.current = -1
	for i := range m.models {
		if m.models[i].ID == id {
			m.current = i
			break
		}
	}
	m.mu.Unlock()
	return m.saveSelection(id)
}

// SavedOrFirst returns the persisted selection when that model is still
// installed, otherwise the smallest local model.
func (m *Manager) SavedOrFirst() (Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if saved := m.loadSelection(); saved != "" {
		if model, ok := m.findLocked(saved); ok {
			return model, nil
		}
	}
	if len(m.models) == 0 {
		return Model{}, fmt.Errorf("no models found in %s", m.dir)
	}
	return m.models[0], nil
}

func (m *Manager) saveSelection(id string) error {
	if err := os.MkdirAll(filepath.Dir(m.selectionFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(m.selectionFile, []byte(id), 0o644); err != nil {
		return fmt.Errorf("failed to save model selection: %w", err)
	}
	return nil
}

func (m *Manager) loadSelection() string {
	data, err := os.ReadFile(m.selectionFile)
	if err != nil {
		return ""
	}
	id, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(id)
}
