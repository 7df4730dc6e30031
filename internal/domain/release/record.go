package release

import "time"

// Actor identifies who produced a release.
type Actor struct {
	// Hostname is the machine the release was packaged on.
	Hostname string
	// Username is the system user who ran the packager.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Record describes the last successful packaging run.
type Record struct {
	// ID uniquely identifies the packaging run.
	ID string
	// Target is the target triple the binary was built for.
	Target string
	// DistDir is the absolute path of the dist directory.
	DistDir string
	// Binary is the distribution name of the binary inside DistDir.
	Binary string
	// ConfigPath is the absolute path of the config that was shipped.
	ConfigPath string
	// BinaryChecksum is the base64-encoded SHA-512 of the shipped binary.
	BinaryChecksum string
	// Actor is who ran the packager.
	Actor *Actor
	// ToolVersion is the telemetryctl version that produced the release.
	ToolVersion string
	// Timestamp is when packaging completed.
	Timestamp time.Time
}

// Clone returns a copy of the record to avoid leaking internal references.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Actor = r.Actor.Clone()

	return &cloned
}
