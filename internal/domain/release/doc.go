// Package release holds the domain model of a packaged release: the record
// kept after a successful build-dist run and the error kinds the packaging
// pipeline reports.
package release
