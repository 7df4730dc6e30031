// Package tester runs the server project's test suite through the build driver.
package tester
