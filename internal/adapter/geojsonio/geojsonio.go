// Package geojsonio reads and writes the GeoJSON files that connect pipeline
// stages. Writes go through a temp file and rename so a failed stage never
// leaves a partial output behind.
package geojsonio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// ReadFeatureCollection loads a feature collection from disk.
func ReadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ReadFeatureCollections loads every listed file that exists, skipping
// missing ones. Parse failures are real errors; a stage must not silently
// aggregate over a corrupt file.
func ReadFeatureCollections(paths ...string) ([]*geojson.FeatureCollection, error) {
	var out []*geojson.FeatureCollection
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fc, err := ReadFeatureCollection(path)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, nil
}

// WriteFeatureCollection writes a feature collection atomically, creating
// parent directories as needed.
func WriteFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
