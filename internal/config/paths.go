// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for myclaw's persistent state. The
// state root is MYCLAW_STATE_DIR when set, falling back to ~/.myclaw
// so a bare install still works without any environment setup.
type Paths struct {
	State  string // sessions.json, transcripts, storage blobs, default workspace
	Config string // ~/.config/myclaw
	Cache  string // ~/.cache/myclaw
}

// GetPaths returns the standard paths for myclaw's data.
func GetPaths() *Paths {
	return &Paths{
		State:  stateRoot(),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "myclaw"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "myclaw"),
	}
}

// stateRoot resolves the state directory: MYCLAW_STATE_DIR wins
// outright, otherwise it falls back to .myclaw under the user's home
// directory.
func stateRoot() string {
	if dir := os.Getenv("MYCLAW_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".myclaw")
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.State, p.Config, p.Cache, p.SessionsDir(), p.WorkspaceDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// SessionsDir returns the directory the session index, transcripts,
// and tool storage blobs live under.
func (p *Paths) SessionsDir() string {
	return filepath.Join(p.State, "sessions")
}

// WorkspaceDir returns the default workspace directory tool calls
// operate against when a run doesn't specify its own.
func (p *Paths) WorkspaceDir() string {
	return filepath.Join(p.State, "workspace")
}

// LogDir returns the directory file-based logging writes to.
func (p *Paths) LogDir() string {
	return filepath.Join(p.State, "logs")
}

// AuthPath returns the path to the auth file.
func (p *Paths) AuthPath() string {
	return filepath.Join(p.State, "auth.json")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "myclaw.json")
}

// ProjectConfigPath returns the path to the project-local config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".myclaw", "myclaw.json")
}
