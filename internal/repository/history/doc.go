// Package history persists the record of the last successful release.
//
// The record is stored as protobuf JSON (a google.protobuf.Struct with the
// timestamp in its canonical JSON form) so it stays readable by any tool that
// speaks proto JSON.
package history
