package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/foldersync/internal/platform"
	"github.com/sdejongh/foldersync/pkg/models"
)

const baselineVersion = 1

// BaselinePath returns where the baseline for a sync pair is stored.
// The filename is a digest of both roots, so any pair maps to exactly
// one state file regardless of path length or special characters.
func BaselinePath(sourcePath, destPath string) string {
	return filepath.Join(platform.StateDir(), pairID(sourcePath, destPath)+".json")
}

// pairID derives a deterministic identifier for a source/dest pair
func pairID(sourcePath, destPath string) string {
	source := filepath.Clean(sourcePath)
	dest := filepath.Clean(destPath)
	return fmt.Sprintf("%016x", xxhash.Sum64String(source+"|"+dest))
}

// LoadBaseline reads the recorded baseline for a pair. A missing file
// returns a fresh empty baseline, which downstream code reads as a
// first sync.
func LoadBaseline(sourcePath, destPath string) (*models.Baseline, error) {
	data, err := os.ReadFile(BaselinePath(sourcePath, destPath))
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewBaseline(sourcePath, destPath), nil
		}
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	var baseline models.Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}
	if baseline.Version > baselineVersion {
		return nil, fmt.Errorf("baseline version %d is newer than supported version %d", baseline.Version, baselineVersion)
	}
	if baseline.Files == nil {
		baseline.Files = make(map[string]*models.BaselineEntry)
	}
	return &baseline, nil
}

// SaveBaseline persists a baseline atomically: the JSON is written to a
// temporary sibling and renamed into place
func SaveBaseline(baseline *models.Baseline) error {
	path := BaselinePath(baseline.SourcePath, baseline.DestPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	baseline.Version = baselineVersion
	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize baseline: %w", err)
	}
	return nil
}

// ClearBaseline removes the recorded baseline for a pair. Clearing a
// pair that has none is not an error.
func ClearBaseline(sourcePath, destPath string) error {
	err := os.Remove(BaselinePath(sourcePath, destPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
