package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/mitchens84/APPLE-HEALTH/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yaml (overrides the default lookup)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	applyFlagOverrides(*configPath, *port)

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// applyFlagOverrides maps command line flags onto the environment layer of
// the configuration, so flags win over both the config file and defaults.
func applyFlagOverrides(configPath string, port int) {
	if configPath != "" {
		os.Setenv("HEALTH_CONFIG_FILE", configPath)
	}
	if port > 0 {
		os.Setenv("HEALTH_SERVER_PORT", strconv.Itoa(port))
	}
}
