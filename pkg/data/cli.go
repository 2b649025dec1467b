package data

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigFile is looked up when no configuration path is given
const DefaultConfigFile = "skillrank.yaml"

// GetConfigSearchPaths returns possible configuration file locations
func GetConfigSearchPaths(filename string) []string {
	paths := []string{}

	// Current directory
	paths = append(paths, filename)

	// User config directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "skillrank", filename))
		paths = append(paths, filepath.Join(homeDir, ".skillrank", filename))
	}

	// System config directory (Unix-like systems)
	paths = append(paths, filepath.Join("/etc", "skillrank", filename))

	return paths
}

// LoadConfig resolves and loads the configuration for a command. An explicit
// path must exist. Without one the search paths are tried and the defaults,
// still subject to environment overrides, are used when nothing is found.
func LoadConfig(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	for _, candidate := range GetConfigSearchPaths(DefaultConfigFile) {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	return Load("")
}

// ValidateOutputPath checks that an output file can be created
func ValidateOutputPath(filePath string) error {
	if filePath == "" {
		return nil
	}

	outputDir := filepath.Dir(filePath)
	if outputDir != "." {
		if _, err := os.Stat(outputDir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", outputDir)
		}
	}

	if err := checkWritable(filePath); err != nil {
		return fmt.Errorf("cannot write to output file %s: %w", filePath, err)
	}

	return nil
}

// checkWritable checks if we can write to the specified file path without
// disturbing an existing file
func checkWritable(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		file, err := os.OpenFile(filePath, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		return file.Close()
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	closeErr := file.Close()
	removeErr := os.Remove(filePath)

	if closeErr != nil {
		return closeErr
	}
	return removeErr
}

// CreateDefaultConfig creates a default configuration file at the specified path
func CreateDefaultConfig(filePath string) error {
	config := DefaultConfig()

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := config.SaveToFile(filePath); err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}

	return nil
}
