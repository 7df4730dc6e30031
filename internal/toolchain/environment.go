package toolchain

import (
	"os/exec"

	"github.com/KazimiOrg/telemetry/internal/domain/release"
)

// LookPathFunc resolves an executable name the way exec.LookPath does.
type LookPathFunc func(file string) (string, error)

// CheckEnvironment verifies every tool resolves through lookPath. All missing
// tools are reported together in a single *release.EnvironmentError.
func CheckEnvironment(lookPath LookPathFunc, tools ...string) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var envErr *release.EnvironmentError

	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			if envErr == nil {
				envErr = &release.EnvironmentError{Err: err}
			}

			envErr.Missing = append(envErr.Missing, tool)
		}
	}

	if envErr != nil {
		return envErr
	}

	return nil
}
