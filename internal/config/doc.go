// Package config provides centralized configuration management for the
// health export processor. It handles loading configuration from multiple
// sources, validation, and a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern HEALTH_* for namespacing:
//
//	HEALTH_SERVER_PORT=8080
//	HEALTH_LOGGING_LEVEL=debug
//	HEALTH_PROCESSING_WORKERS=4
//	HEALTH_PROCESSING_MAX_UPLOAD_MB=500
//
// HEALTH_CONFIG_FILE overrides the config file location.
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which resolves all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	reportPath := paths.GetReportPath("_APPLE_HEALTH_SCHEDULE.csv")
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
