package models

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tiny.en", "ggml-tiny.en.bin"},
		{"base", "ggml-base.bin"},
		{"ggml-base", "ggml-base.bin"},
		{"base.bin", "ggml-base.bin"},
		{"ggml-large-v3-turbo-q5_0.bin", "ggml-large-v3-turbo-q5_0.bin"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalog(t *testing.T) {
	catalog := Catalog()

	if len(catalog) != 11 {
		t.Errorf("Expected 11 catalog entries, got %d", len(catalog))
	}

	for _, m := range catalog {
		if !strings.HasPrefix(m.URL, HuggingFaceBase+"/") {
			t.Errorf("Model %s has unexpected URL %s", m.Filename, m.URL)
		}
		if m.Size <= 0 {
			t.Errorf("Model %s has no size", m.Filename)
		}
	}
}

func TestFindRemote(t *testing.T) {
	m, ok := FindRemote("tiny.en")
	if !ok {
		t.Fatal("Expected to find tiny.en in the catalog")
	}
	if m.Filename != "ggml-tiny.en.bin" {
		t.Errorf("Expected ggml-tiny.en.bin, got %s", m.Filename)
	}

	if _, ok := FindRemote("enormous-v9"); ok {
		t.Error("Found a model that is not in the catalog")
	}
}

func TestDownload(t *testing.T) {
	payload := strings.Repeat("x", 10000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An explicit length keeps the response out of chunked encoding,
		// so the client sees a ContentLength and reports progress.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "models", "ggml-test.bin")

	var fractions []float64
	err := NewDownloader().Download(server.URL, dest, func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Downloaded file missing: %v", err)
	}
	if string(data) != payload {
		t.Errorf("Downloaded %d bytes, want %d", len(data), len(payload))
	}

	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("Partial file left behind after a successful download")
	}

	if len(fractions) == 0 {
		t.Fatal("No progress reported")
	}
	last := fractions[len(fractions)-1]
	if last != 1.0 {
		t.Errorf("Expected final progress 1.0, got %v", last)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatal("Progress went backwards")
		}
	}
}

func TestDownloadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "ggml-test.bin")

	if err := NewDownloader().Download(server.URL, dest, nil); err == nil {
		t.Fatal("Expected error for HTTP 404")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("Destination file should not exist after a failed download")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("Partial file should be removed after a failed download")
	}
}

func TestDownloadConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dest := filepath.Join(t.TempDir(), "ggml-test.bin")

	if err := NewDownloader().Download(url, dest, nil); err == nil {
		t.Fatal("Expected error when the server is unreachable")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("Partial file should be removed after a failed download")
	}
}
