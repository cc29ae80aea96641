// Package config defines the updater settings and provides helpers to load
// them from an optional YAML file, apply SELF_UPDATER_* environment
// overrides, validate and save them.
package config
