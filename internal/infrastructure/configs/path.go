package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/watchsync/internal/infrastructure/env"
)

// DetermineConfigPath returns an empty string when no file is found; the
// server then runs on defaults and environment overrides alone.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("WATCHSYNC_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml", // keep for local dev
			"/etc/watchsync/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
