package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skywatch-data/skywatch/internal/tracker"
)

// FileStore writes each export document to its own timestamped JSON file in
// a directory, e.g. skywatch_20260826_143000.json. Writes go through a temp
// file and rename so a partially written document is never observable.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a file store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveExport marshals the document and atomically writes it to a timestamped
// file.
func (f *FileStore) SaveExport(doc *tracker.ExportDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export document: %w", err)
	}

	name := fmt.Sprintf("skywatch_%s.json", doc.ExportTime.Format("20060102_150405"))
	path := filepath.Join(f.dir, name)

	tmp, err := os.CreateTemp(f.dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}

// Latest returns the path of the most recent export file, or an empty string
// when the directory holds none.
func (f *FileStore) Latest() (string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return "", fmt.Errorf("read export directory: %w", err)
	}
	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(f.dir, e.Name())
			latestMod = info.ModTime()
		}
	}
	return latest, nil
}

// Multi fans one export out to several stores; every store is attempted and
// the errors are joined so one failing sink does not starve the others.
func Multi(stores ...tracker.ExportStore) tracker.ExportStore {
	return multiStore(stores)
}

type multiStore []tracker.ExportStore

func (m multiStore) SaveExport(doc *tracker.ExportDocument) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveExport(doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
