//go:build windows

package toolchain

import "os"

// interrupt kills the child; Windows cannot deliver os.Interrupt to another process.
func interrupt(p *os.Process) error {
	return p.Kill()
}
