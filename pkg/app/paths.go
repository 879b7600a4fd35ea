package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const configFile = "parrot.yaml"

// xdgDir returns $env/parrot, or ~/<fallback...>/parrot when env is unset.
// The bool is false when neither can be determined.
func xdgDir(env string, fallback ...string) (string, bool) {
	if dir, ok := os.LookupEnv(env); ok {
		return filepath.Join(dir, "parrot"), true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(append(append([]string{home}, fallback...), "parrot")...), true
}

// configCandidates lists, in order, where a configuration file is looked for.
func configCandidates() []string {
	var out []string
	if dir, ok := xdgDir("XDG_CONFIG_HOME", ".config"); ok {
		out = append(out, filepath.Join(dir, configFile))
	}
	return append(out, configFile)
}

// ResolveConfigPath returns the first existing configuration file among
// $XDG_CONFIG_HOME/parrot/parrot.yaml (or ~/.config/parrot/parrot.yaml)
// and ./parrot.yaml.
func ResolveConfigPath() (string, error) {
	candidates := configCandidates()
	for _, path := range candidates {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no configuration file found in %s", strings.Join(candidates, ", "))
}

// DefaultConfigPath is where `parrot init` writes without --output.
func DefaultConfigPath() string {
	return configCandidates()[0]
}

// DefaultDataDir is where the SQLite database lives unless overridden:
// $XDG_DATA_HOME/parrot, else ~/.local/share/parrot.
func DefaultDataDir() string {
	if dir, ok := xdgDir("XDG_DATA_HOME", ".local", "share"); ok {
		return dir
	}
	return filepath.Join(".", "data")
}
