package descriptor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"

	"github.com/platinummonkey/modcheck/pkg/hashing"
)

var (
	// ErrStatementNotFound is returned by Replace when the old text is no longer present.
	ErrStatementNotFound = errors.New("statement not found in descriptor")
)

// File is a build descriptor read and written through an afs.Service.
// It keeps the last text it observed and reloads when the file changed on disk.
type File struct {
	fs   afs.Service
	path string

	mu          sync.Mutex
	text        string
	loaded      bool
	fingerprint uint64
	external    int
}

// NewFile creates a lazily loaded descriptor. A nil service uses afs.New().
func NewFile(fs afs.Service, path string) *File {
	if fs == nil {
		fs = afs.New()
	}
	return &File{fs: fs, path: path}
}

// Path returns the descriptor location.
func (f *File) Path() string { return f.path }

// IsKotlin reports whether the descriptor uses the Kotlin DSL.
func (f *File) IsKotlin() bool { return strings.HasSuffix(f.path, ".kts") }

// Dir returns the directory holding the descriptor.
func (f *File) Dir() string { return filepath.Dir(f.path) }

// Text returns the current descriptor text, loading it on first use.
func (f *File) Text(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		if err := f.loadLocked(ctx); err != nil {
			return "", err
		}
	}
	return f.text, nil
}

// Parse parses the current descriptor text.
func (f *File) Parse(ctx context.Context) (*Parsed, error) {
	text, err := f.Text(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(text, f.IsKotlin()), nil
}

// ExternalChanges counts how often the file was found modified by another writer.
func (f *File) ExternalChanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.external
}

func (f *File) loadLocked(ctx context.Context) error {
	data, err := f.fs.DownloadWithURL(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to read descriptor %s: %w", f.path, err)
	}
	f.text = string(data)
	f.fingerprint = hashing.Sum64(data)
	f.loaded = true
	return nil
}

// Update applies edit to the latest descriptor text and writes the result back.
// When the file changed on disk since it was last read, the edit runs against the
// on-disk text so that stale anchors fail instead of clobbering foreign edits.
func (f *File) Update(ctx context.Context, edit func(text string) (string, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.fs.DownloadWithURL(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to read descriptor %s: %w", f.path, err)
	}
	if sum := hashing.Sum64(data); !f.loaded || sum != f.fingerprint {
		if f.loaded {
			f.external++
		}
		f.text = string(data)
		f.fingerprint = sum
		f.loaded = true
	}

	updated, err := edit(f.text)
	if err != nil {
		return err
	}
	if updated == f.text {
		return nil
	}
	if err := f.fs.Upload(ctx, f.path, 0o644, bytes.NewReader([]byte(updated))); err != nil {
		return fmt.Errorf("failed to write descriptor %s: %w", f.path, err)
	}
	f.text = updated
	f.fingerprint = hashing.Sum64([]byte(updated))
	return nil
}

// Replace swaps the first occurrence of oldText for newText.
func (f *File) Replace(ctx context.Context, oldText, newText string) error {
	return f.Update(ctx, func(text string) (string, error) {
		idx := strings.Index(text, oldText)
		if oldText == "" || idx < 0 {
			return "", ErrStatementNotFound
		}
		return text[:idx] + newText + text[idx+len(oldText):], nil
	})
}

// Append adds text to the end of the descriptor.
func (f *File) Append(ctx context.Context, suffix string) error {
	return f.Update(ctx, func(text string) (string, error) {
		return text + suffix, nil
	})
}
