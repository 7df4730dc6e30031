// Package packager builds and stages a release of the telemetry server.
//
// A packaging run checks the build tooling, validates the config path,
// performs a clean cross-compiled release build and stages the renamed binary
// plus the config into a fresh directory that atomically replaces the dist
// directory. The dist directory is never touched unless the build succeeded,
// and it always holds exactly the binary and config.yaml.
package packager
