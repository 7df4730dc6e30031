// Package logger wraps zap to give telemetryctl:
//   - a global sugared logger writing console-formatted lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag and settings file,
//   - leveled helpers (Info, InfoKV, Errorf, ...) taking a context.
//
// Stdout is left to the server and to command output, so logs never mix
// with what a caller might pipe.
package logger
