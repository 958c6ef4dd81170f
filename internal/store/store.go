package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Document represents a markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ReadDocument reads a markdown file with YAML frontmatter.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}

	var matter map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &matter)
	if err != nil {
		slog.Debug("no frontmatter found in document", "path", path, "error", err)
		return &Document{
			Frontmatter: make(map[string]any),
			Body:        string(data),
		}, nil
	}
	if matter == nil {
		matter = make(map[string]any)
	}

	return &Document{
		Frontmatter: matter,
		Body:        string(body),
	}, nil
}

// WriteDocument writes a markdown file with YAML frontmatter.
func WriteDocument(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	var buf bytes.Buffer
	if len(doc.Frontmatter) > 0 {
		buf.WriteString("---\n")
		fm, err := yaml.Marshal(doc.Frontmatter)
		if err != nil {
			return fmt.Errorf("marshaling frontmatter: %w", err)
		}
		buf.Write(fm)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(doc.Body)

	return atomicWriteFile(path, buf.Bytes(), 0644)
}

// atomicWriteFile writes data to a temp file in the same directory then
// renames it into place, so readers never see a partial report.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
