// Package storage persists the document store as a single JSON file.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kioku/models"
)

// ErrCorrupt reports that the store file exists but does not decode into a
// valid store.
var ErrCorrupt = errors.New("store file is corrupt")

// Load reads and decodes the store file at path. A missing file surfaces as
// fs.ErrNotExist so callers can treat it as an empty store; content that does
// not parse or fails schema validation surfaces as ErrCorrupt.
func Load(path string) (*models.StoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file, err := models.DecodeStoreFile(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return file, nil
}

// Save atomically replaces the store file at path. The encoded store is
// written to a temporary sibling, synced, and renamed over the target, so a
// crash mid-write leaves the previous file intact. The temporary file is
// removed on every failure path.
func Save(path string, file *models.StoreFile) error {
	data, err := file.Encode()
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Sync the directory to persist the rename.
	return syncDir(filepath.Dir(path))
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
