// Package upload defines the upload widget collaborator: something that takes
// a file the user picked, stores it on an external asset host and reports a
// single terminal result.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrDismissed means the session ended without a file being stored.
	ErrDismissed        = errors.New("upload dismissed")
	ErrFormatNotAllowed = errors.New("file format not allowed")
	ErrTooLarge         = errors.New("file too large")
	ErrSourceNotAllowed = errors.New("upload source not allowed")
	ErrEmptyFile        = errors.New("file is empty")
)

// Config restricts what a widget session accepts.
type Config struct {
	AllowedFormats   []string `json:"allowedFormats"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes"`
	Sources          []string `json:"sources"`
}

// File is the user's pick handed to the widget.
type File struct {
	Name   string
	Source string // local, camera; empty means local
	Data   []byte
}

// Result is the one terminal outcome of a widget session: either the stored
// asset or Err.
type Result struct {
	SecureURL    string
	ResourceType string // image, video
	Format       string
	Err          error
}

// Widget opens upload sessions. The returned channel yields at most one
// Result; a session abandoned through ctx may never yield.
type Widget interface {
	Open(ctx context.Context, cfg Config, file File) <-chan Result
}

// Check applies cfg's format, size and source limits to file.
func (cfg Config) Check(file File) error {
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Name), "."))
	if len(cfg.AllowedFormats) > 0 && !slices.Contains(cfg.AllowedFormats, ext) {
		return fmt.Errorf("%w: %q", ErrFormatNotAllowed, ext)
	}

	if cfg.MaxFileSizeBytes > 0 && int64(len(file.Data)) > cfg.MaxFileSizeBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(file.Data), cfg.MaxFileSizeBytes)
	}

	source := file.Source
	if source == "" {
		source = "local"
	}
	if len(cfg.Sources) > 0 && !slices.Contains(cfg.Sources, source) {
		return fmt.Errorf("%w: %q", ErrSourceNotAllowed, source)
	}

	return nil
}
