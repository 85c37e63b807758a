package main

import (
	"os"
	"strings"

	"github.com/quarrydb/quarrywire/internal/config"
)

// loadConfig reads the toml config when it exists and applies the -addr
// override. A missing file with an explicit -addr is allowed so the probe
// works without any config at all.
func loadConfig(path, addrOverride string) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()

	if _, err := os.Stat(path); err == nil {
		loaded, err := config.ReadClientConfig(path)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
	}

	if override := strings.TrimSpace(addrOverride); override != "" {
		cfg.Addr = override
	}

	if err := config.ValidateClientConfig(cfg); err != nil {
		return config.ClientConfig{}, err
	}
	return cfg, nil
}
