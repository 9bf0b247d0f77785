package lora

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samcharles93/loractl/internal/safetensors"
)

var (
	ErrNotFound          = errors.New("lora: patch file not found")
	ErrUnsupportedFormat = errors.New("lora: unsupported patch format")
)

// Extensions are tried in order when locating a patch by name.
var Extensions = []string{".safetensors", ".ckpt", ".pt"}

// FindPath looks for name+ext directly in dir, then in every subdirectory
// (walked in lexical order). Returns ErrNotFound when nothing matches or
// name would leave dir.
func FindPath(dir, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: %s (no patch directory configured)", ErrNotFound, name)
	}
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if p, ok := findIn(dir, name); ok {
		return p, nil
	}

	var subdirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() && path != dir {
			subdirs = append(subdirs, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	sort.Strings(subdirs)
	for _, sub := range subdirs {
		if p, ok := findIn(sub, name); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func findIn(dir, name string) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(dir, name+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// FileLoader locates and decodes patch files under Dir.
type FileLoader struct {
	Dir string
}

// Locate returns the path of the named patch.
func (l FileLoader) Locate(name string) (string, error) {
	return FindPath(l.Dir, name)
}

// Load reads the patch at path. Only safetensors files are decoded; pickle
// based formats are rejected.
func (l FileLoader) Load(name, path string) (*Payload, error) {
	if !strings.EqualFold(filepath.Ext(path), ".safetensors") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	return Decode(name, f)
}
