// Package status reports the last release packaged by build-dist and can
// verify that the dist directory still holds the binary that was recorded.
package status
