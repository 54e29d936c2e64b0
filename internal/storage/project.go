package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/modhook/internal/config"
)

// ProjectDir is the per-project state directory.
const ProjectDir = ".modhook"

// DiscoverConfig returns the config file path for the current directory.
//
// MODHOOK_CONFIG wins when set. Otherwise only the current directory is
// checked, never its parents, so a nested checkout cannot pick up an
// enclosing project's database. The returned file may not exist yet;
// config.Load falls back to defaults in that case.
func DiscoverConfig() (string, error) {
	if p := os.Getenv("MODHOOK_CONFIG"); p != "" {
		return p, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return filepath.Join(dir, config.DefaultPath), nil
}

// InitProject creates a .modhook directory holding a default config file,
// plus an empty plugin directory. Returns the path to the config file.
func InitProject(projectDir string) (string, error) {
	// Ensure project directory exists
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	stateDir := filepath.Join(projectDir, ProjectDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", ProjectDir, err)
	}

	cfgPath := filepath.Join(projectDir, config.DefaultPath)
	if _, err := os.Stat(cfgPath); err == nil {
		return "", fmt.Errorf("config already exists: %s", cfgPath)
	}

	// Paths are written relative to the project root; config.Load resolves them.
	cfg := config.DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(projectDir, cfg.PatchesDir), 0755); err != nil {
		return "", fmt.Errorf("failed to create plugin directory: %w", err)
	}

	return cfgPath, nil
}
