// Package platform resolves the per-user directories the tool keeps its
// files in.
package platform

import (
	"os"
	"path/filepath"
)

const appDirName = "foldersync"

// ConfigDir returns the directory holding the user configuration,
// creating nothing
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDirName)
}

// StateDir returns the directory holding per-pair sync baselines
func StateDir() string {
	return filepath.Join(ConfigDir(), "state")
}

// DefaultConfigPath returns the default configuration file location
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultLogPath returns the default log file location
func DefaultLogPath() string {
	return filepath.Join(ConfigDir(), "logs", appDirName+".log")
}
