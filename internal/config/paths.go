package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "FLEETSCOPE_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "fleetscope.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "fleetscope"
	// LegacyCredentialsFile is the multi-organization key file read when no key is configured
	LegacyCredentialsFile = "api_keys_org_ids.txt"
)

// SearchPaths lists config candidates in priority order:
// $FLEETSCOPE_CONFIG, ./fleetscope.yaml, $XDG_CONFIG_HOME/fleetscope/config.yaml,
// ~/.config/fleetscope/config.yaml, /etc/fleetscope/config.yaml
func SearchPaths() []string {
	var paths []string
	if path := os.Getenv(EnvConfigPath); path != "" {
		paths = append(paths, path)
	}
	paths = append(paths, ConfigFileName)
	for _, dir := range userConfigDirs() {
		paths = append(paths, filepath.Join(dir, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing candidate of SearchPaths, or "" if none exists
func FindConfigPath() string {
	return firstExisting(SearchPaths())
}

// FindCredentialsFile looks for the legacy key file next to the config and in the
// working directory
func FindCredentialsFile(configPath string) string {
	var candidates []string
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), LegacyCredentialsFile))
	}
	candidates = append(candidates, LegacyCredentialsFile)
	for _, dir := range userConfigDirs() {
		candidates = append(candidates, filepath.Join(dir, LegacyCredentialsFile))
	}
	return firstExisting(candidates)
}

// DefaultConfigPath returns the preferred location for a new config file.
// Prefers XDG config home, falls back to working directory.
func DefaultConfigPath() string {
	if dirs := userConfigDirs(); len(dirs) > 0 {
		return filepath.Join(dirs[0], "config.yaml")
	}
	return ConfigFileName
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

// userConfigDirs returns $XDG_CONFIG_HOME/fleetscope and ~/.config/fleetscope when set
func userConfigDirs() []string {
	var dirs []string
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		dirs = append(dirs, filepath.Join(xdgHome, ConfigDirName))
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigDirName))
	}
	return dirs
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if !fileExists(path) {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
