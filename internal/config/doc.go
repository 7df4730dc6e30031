// Package config defines the settings telemetryctl uses to locate the server
// project and its toolchain, and provides helpers to load, validate and save
// them in YAML format.
//
// Every field has a default, so a missing telemetryctl.yaml is equivalent to
// an empty one.
package config
