package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates the usdt config file and data directory.
type Paths struct {
	// ConfigFile is the TOML config, $USDT_CONFIG_PATH or ~/.config/usdt.toml.
	ConfigFile string
	// Home holds the database, local vault, keys and logs. $USDT_HOME or
	// ~/.local/share/usdt.
	Home string
}

// LogDir is where usdt.log is written.
func (p Paths) LogDir() string { return filepath.Join(p.Home, "log") }

// DefaultPaths resolves Paths from the environment, then the home directory.
func DefaultPaths() (Paths, error) {
	var p Paths
	p.ConfigFile = os.Getenv("USDT_CONFIG_PATH")
	p.Home = os.Getenv("USDT_HOME")
	if p.ConfigFile != "" && p.Home != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if p.ConfigFile == "" {
		p.ConfigFile = filepath.Join(home, ".config", "usdt.toml")
	}
	if p.Home == "" {
		p.Home = filepath.Join(home, ".local", "share", "usdt")
	}
	return p, nil
}
