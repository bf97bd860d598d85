package models

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HuggingFaceBase is where ggerganov's converted whisper models are hosted
const HuggingFaceBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// RemoteModel is a downloadable model in the known catalog
type RemoteModel struct {
	Filename string
	Size     int64
	URL      string
}

// SizeMB returns the advertised size in whole megabytes
func (m RemoteModel) SizeMB() int64 {
	return m.Size / 1000000
}

// Catalog returns the known downloadable models
func Catalog() []RemoteModel {
	entries := []struct {
		filename string
		size     int64
	}{
		{"ggml-tiny.en.bin", 75_000_000},
		{"ggml-tiny.bin", 75_000_000},
		{"ggml-base.en.bin", 142_000_000},
		{"ggml-base.bin", 142_000_000},
		{"ggml-small.en.bin", 466_000_000},
		{"ggml-small.bin", 466_000_000},
		{"ggml-medium.en.bin", 1_500_000_000},
		{"ggml-medium.bin", 1_500_000_000},
		{"ggml-large-v3.bin", 2_900_000_000},
		{"ggml-large-v3-turbo.bin", 800_000_000},
		{"ggml-large-v3-turbo-q5_0.bin", 547_000_000},
	}

	models := make([]RemoteModel, 0, len(entries))
	for _, e := range entries {
		models = append(models, RemoteModel{
			Filename: e.filename,
			Size:     e.size,
			URL:      HuggingFaceBase + "/" + e.filename,
		})
	}
	return models
}

// NormalizeName completes a short model name: "tiny.en" becomes
// "ggml-tiny.en.bin".
func NormalizeName(name string) string {
	if !strings.Contains(name, ".bin") {
		name += ".bin"
	}
	if !strings.HasPrefix(name, "ggml-") {
		name = "ggml-" + name
	}
	return name
}

// FindRemote looks up a catalog entry by full or short name
func FindRemote(name string) (RemoteModel, bool) {
	target := NormalizeName(name)
	for _, m := range Catalog() {
		if m.Filename == target {
			return m, true
		}
	}
	return RemoteModel{}, false
}

// Downloader fetches model files over HTTP
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a downloader. No client timeout is set: large model
// files can take arbitrarily long on slow links.
func NewDownloader() *Downloader {
	return &Downloader{client: &http.Client{}}
}

// Download fetches url into destPath via a .part file that is renamed into
// place once complete, so an interrupted download never leaves a truncated
// model behind. Progress is reported as a fraction in [0, 1] when the
// server announces a content length.
func (d *Downloader) Download(url, destPath string, progress func(float64)) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp := destPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	resp, err := d.client.Get(url)
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}

	var src io.Reader = resp.Body
	if progress != nil && resp.ContentLength > 0 {
		src = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}

	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download of %s failed: %w", url, err)
	}

	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	p.report(float64(p.read) / float64(p.total))
	return n, err
}
