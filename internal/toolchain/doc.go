// Package toolchain shells out to the server's build tooling: the build
// driver (cargo) for clean, run and test, and the cross-compilation helper
// (cross) for release builds.
//
// Packaging depends on the Builder interface rather than on Cargo directly so
// the pipeline can be exercised without a compiler.
package toolchain
