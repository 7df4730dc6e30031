// Package launcher runs the telemetry server locally with a given config and
// elevated logging. In watch mode the server is restarted whenever the config
// file changes.
package launcher
