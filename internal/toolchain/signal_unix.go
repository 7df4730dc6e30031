//go:build !windows

package toolchain

import "os"

// interrupt asks the child to shut down the way a terminal Ctrl-C would.
func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
