package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "layered.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".layered"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "layered"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/layered/config.toml)
//  3. Project config (.layered/config.toml or layered.toml)
//  4. Environment variables (LAYERED_*)
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config
	if projectCfg := loadProjectConfig(); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// LoadFrom loads configuration starting from a specific directory.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	if projectCfg := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// loadGlobalConfig loads the global user configuration from ~/.config/layered/config.toml.
func loadGlobalConfig() *Config {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}

	configPath := filepath.Join(configDir, GlobalConfigDir, "config.toml")
	return loadConfigFile(configPath)
}

// loadProjectConfig looks for project configuration in the current directory and parents.
func loadProjectConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return loadProjectConfigFrom(wd)
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) *Config {
	// Search up the directory tree for config files
	current := dir
	for {
		// Check for .layered/config.toml first
		stateDirConfig := filepath.Join(current, ConfigDirName, "config.toml")
		if cfg := loadConfigFile(stateDirConfig); cfg != nil {
			return cfg
		}

		// Check for layered.toml in project root
		rootConfig := filepath.Join(current, ConfigFileName)
		if cfg := loadConfigFile(rootConfig); cfg != nil {
			return cfg
		}

		// Stop at filesystem root or repository root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil
}

// isWorkspaceRoot checks if the directory is a repository root (has .git).
func isWorkspaceRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// FindProjectRoot walks up from dir to the nearest repository root. It
// returns dir itself when no root is found.
func FindProjectRoot(dir string) string {
	current := dir
	for {
		if isWorkspaceRoot(current) {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir
		}
		current = parent
	}
}

// loadConfigFile loads a configuration from a TOML file.
func loadConfigFile(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil
	}

	return &cfg
}

// applyEnvironmentVariables applies LAYERED_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("LAYERED_POSTS_DIR"); v != "" {
		cfg.Posts.Dir = v
	}

	// LAYERED_POSTS_EXTENSIONS: comma-separated list of extensions
	if v := os.Getenv("LAYERED_POSTS_EXTENSIONS"); v != "" {
		cfg.Posts.Extensions = splitAndTrim(v)
	}

	if v := os.Getenv("LAYERED_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}

	// An explicitly empty marker disables skipping, so presence matters.
	if v, ok := os.LookupEnv("LAYERED_SKIP_MARKER"); ok {
		cfg.History.SkipMarker = &v
	}

	applyIntEnv("LAYERED_WATCH_DEBOUNCE_MS", func(n int) {
		if n > 0 {
			cfg.Watch.DebounceMs = n
		}
	})

	if v := os.Getenv("LAYERED_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}

	applyIntEnv("LAYERED_LOG_VERBOSITY", func(n int) {
		cfg.Log.Verbosity = &n
	})
	if v := os.Getenv("LAYERED_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyIntEnv parses an integer environment variable and hands it to set.
// Unparsable values are ignored.
func applyIntEnv(envVar string, set func(int)) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			set(n)
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
