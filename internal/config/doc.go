// Package config provides centralized configuration management for the
// delay-regression pipeline. It handles loading configuration from multiple
// sources, validation, and provides a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern DELAYREG_* for namespacing:
//
//	DELAYREG_PATHS_INPUT_CSV=data/flights.csv
//	DELAYREG_PATHS_RESULTS_DIR=results
//	DELAYREG_LOGGING_LEVEL=info
//	DELAYREG_ESTIMATION_MAX_CONCURRENCY=4
package config
