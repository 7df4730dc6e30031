// Package version exposes build metadata for telemetryctl.
//
// Version, Commit and BuildTime are injected with -ldflags at build time and
// are also stamped into every release record.
package version
