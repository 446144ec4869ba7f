package smstools

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archiver moves processed inbound files out of the mail-drop directory
// so they are never reprocessed.
type Archiver struct {
	dir string
}

// NewArchiver builds an archiver, creating the archive directory if it
// does not exist.
func NewArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archiver{dir: dir}, nil
}

// Archive moves one processed file into the archive directory.
func (a *Archiver) Archive(path string) error {
	dest := filepath.Join(a.dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
