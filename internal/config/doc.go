// Package config holds the bluebird runtime configuration.
//
// Settings come from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. BLUEBIRD_* environment variables
//
// Environment variables map onto setting paths by section, so
// BLUEBIRD_LOGGER_MAX_ENTRIES sets logger.max_entries. List settings take
// comma separated values.
package config
