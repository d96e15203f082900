// Package storage locates the trainer's files and keeps a journal of its runs.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "chesstrain"

// GetDataDir returns the platform-specific data directory for the application.
// - macOS: ~/Library/Application Support/chesstrain/
// - Linux: ~/.local/share/chesstrain/
// - Windows: %APPDATA%/chesstrain/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		// macOS: ~/Library/Application Support/
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		// Windows: %APPDATA%
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		// Linux and other Unix-like: ~/.local/share/
		// Check XDG_DATA_HOME first
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	return dataDir, nil
}

// File names inside the data directory.
const (
	DatasetFile = "dataset.bin"
	NetworkFile = "network.bin"
	PuzzleFile  = "lichess_db_puzzle.csv.zst"
)

// GetDatasetPath returns the default location of the dataset log.
func GetDatasetPath() (string, error) {
	return dataFile(DatasetFile)
}

// GetNetworkPath returns the default location of the network weights.
func GetNetworkPath() (string, error) {
	return dataFile(NetworkFile)
}

// GetPuzzlePath returns the default location of the puzzle corpus.
func GetPuzzlePath() (string, error) {
	return dataFile(PuzzleFile)
}

func dataFile(name string) (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

// GetDatabaseDir returns the directory for storing the BadgerDB database.
func GetDatabaseDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}

	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}

	return dbDir, nil
}
