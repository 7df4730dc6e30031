package tester

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KazimiOrg/telemetry/internal/domain/release"
)

var errTestsFailed = errors.New("exit status 101")

// recordingSuite captures the arguments it was run with.
type recordingSuite struct {
	args []string
	runs int
	err  error
}

func (s *recordingSuite) Test(_ context.Context, args ...string) error {
	s.runs++
	s.args = args

	return s.err
}

func found(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

// TestRun_PassesArgs forwards extra arguments to the suite.
func TestRun_PassesArgs(t *testing.T) {
	t.Parallel()

	s := new(recordingSuite)

	require.NoError(t, run(context.Background(), found, "cargo", s, []string{"--workspace", "conn::"}))
	require.Equal(t, []string{"--workspace", "conn::"}, s.args)
}

// TestRun_Failure reports failing tests as a generic failure.
func TestRun_Failure(t *testing.T) {
	t.Parallel()

	s := &recordingSuite{err: errTestsFailed}

	err := run(context.Background(), found, "cargo", s, nil)
	require.ErrorIs(t, err, errTestsFailed)
	require.Equal(t, release.ExitFailure, release.ExitCode(err))
}

// TestRun_MissingDriver does not run anything without the build driver.
func TestRun_MissingDriver(t *testing.T) {
	t.Parallel()

	s := new(recordingSuite)
	missing := func(string) (string, error) { return "", errors.New("not found") }

	err := run(context.Background(), missing, "cargo", s, nil)
	require.Equal(t, release.ExitEnvironment, release.ExitCode(err))
	require.Zero(t, s.runs)
}
