// Package common holds helpers shared by several services: resolving and
// validating the server config path, SHA-512 file checksums, and detecting
// the current system actor (hostname/username) for release records.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
