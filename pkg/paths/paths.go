// Package paths resolves where flux keeps its state on disk.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvFluxHome   = "FLUX_HOME"
	EnvFluxLogDir = "FLUX_LOG_DIR"
	EnvFluxDBPath = "FLUX_DB_PATH"
)

// HomeDir is the per-user state directory, ~/.flux unless FLUX_HOME is set.
func HomeDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvFluxHome)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = os.Getenv("HOME")
	}
	if strings.TrimSpace(home) == "" {
		return ".flux"
	}
	return filepath.Join(home, ".flux")
}

// ProjectDir is the project-scoped state directory relative to workdir.
func ProjectDir(workdir string) string {
	if strings.TrimSpace(workdir) == "" {
		workdir = "."
	}
	return filepath.Join(workdir, ".flux")
}

// LogsBaseDir is where session logs are written.
func LogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvFluxLogDir)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	return filepath.Join(HomeDir(), "logs")
}

// DBPath is the default sqlite database location.
func DBPath() string {
	if path := strings.TrimSpace(os.Getenv(EnvFluxDBPath)); path != "" {
		return filepath.Clean(ExpandHome(path))
	}
	return filepath.Join(HomeDir(), "flux.db")
}

// UserSkillsDir holds personal skills.
func UserSkillsDir() string {
	return filepath.Join(HomeDir(), "skills")
}

// ProjectSkillsDir holds skills checked into the project at workdir.
func ProjectSkillsDir(workdir string) string {
	return filepath.Join(ProjectDir(workdir), "skills")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
