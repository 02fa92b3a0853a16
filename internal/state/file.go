package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	snapshotDirPermissions  = 0750
	snapshotFilePermissions = 0600
)

// fileDocument is the on-disk layout of the JSON snapshot.
type fileDocument struct {
	EntityStates map[string]string `json:"entity_states"`
}

// FileSnapshotter stores the snapshot as a JSON document.
type FileSnapshotter struct {
	path string
}

// NewFileSnapshotter returns a snapshotter writing to path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

// Path returns the snapshot file path.
func (f *FileSnapshotter) Path() string {
	return f.path
}

// Load reads the snapshot. A missing file is an empty snapshot.
func (f *FileSnapshotter) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, f.path, err)
	}
	if doc.EntityStates == nil {
		doc.EntityStates = map[string]string{}
	}
	return doc.EntityStates, nil
}

// Save writes states to a temporary file in the same directory and renames
// it over the snapshot, so readers never observe a partial document.
func (f *FileSnapshotter) Save(_ context.Context, states map[string]string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fileDocument{EntityStates: states}); err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, snapshotDirPermissions); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Already renamed on success

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Sync error takes precedence
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, snapshotFilePermissions); err != nil {
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
