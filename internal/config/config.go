package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Config holds the settings telemetryctl uses to drive the server's toolchain.
type Config struct {
	// ProjectDir is the root of the server's cargo project.
	ProjectDir string `yaml:"project_dir"`
	// Target is the target triple the release is cross-compiled for.
	Target string `yaml:"target"`
	// BuildDriver is the build driver executable (cargo).
	BuildDriver string `yaml:"build_driver"`
	// CrossHelper is the cross-compilation helper executable (cross).
	CrossHelper string `yaml:"cross_helper"`
	// CrateBinary is the binary name the build driver emits.
	CrateBinary string `yaml:"crate_binary"`
	// DistDir is the output directory, relative to ProjectDir unless absolute.
	DistDir string `yaml:"dist_dir"`
	// DistBinary is the distribution-facing binary name inside DistDir.
	DistBinary string `yaml:"dist_binary"`
	// HistoryFile records the last successful release, relative to ProjectDir unless absolute.
	HistoryFile string `yaml:"history_file"`
	// LogLevel is the level of telemetryctl's own logs.
	LogLevel string `yaml:"log_level"`
	// ServerLogFilter is exported as RUST_LOG when the server is launched.
	ServerLogFilter string `yaml:"server_log_filter"`
}

const (
	// DefaultSettingsFilename is looked up in the working directory when no settings path is given.
	DefaultSettingsFilename = "telemetryctl.yaml"

	// DefaultTarget is the only platform releases are built for.
	DefaultTarget = "x86_64-unknown-linux-gnu"

	// DefaultBuildDriver builds, runs and tests the server.
	DefaultBuildDriver = "cargo"

	// DefaultCrossHelper cross-compiles release builds.
	DefaultCrossHelper = "cross"

	// DefaultCrateBinary is the name of the binary cargo produces.
	DefaultCrateBinary = "telemetry-server"

	// DefaultDistDir is where packaged releases land.
	DefaultDistDir = "dist"

	// DefaultDistBinary is the binary name shipped in the dist directory.
	DefaultDistBinary = "rashitelemetryserver"

	// DistConfigFilename is the name the validated config is shipped under.
	DistConfigFilename = "config.yaml"

	// DefaultHistoryFile stores the last release record.
	DefaultHistoryFile = ".telemetryctl-history.json"

	// DefaultLogLevel is the level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultServerLogFilter gives the launched server elevated logging.
	DefaultServerLogFilter = "debug"

	// DefaultFilePermissions is used for files telemetryctl writes for itself.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidTarget is returned for empty or list-valued target triples.
	errInvalidTarget = errors.New("target must be a single target triple")
	// errInvalidName is returned when a binary name contains path elements.
	errInvalidName = errors.New("name must be a plain file name")
	// errUnsafeDistDir is returned when the dist directory would cover the project itself.
	errUnsafeDistDir = errors.New("dist directory must be a subdirectory distinct from the project")
	// ErrSettingsExist is returned by Save when the file exists and overwriting was not requested.
	ErrSettingsExist = errors.New("settings file already exists")
)

// Default returns a Config populated with defaults. Paths stay relative
// until resolved through DistPath, HistoryPath or ProjectPath.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads settings from path. An empty path means DefaultSettingsFilename,
// which is allowed to be absent; a named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSettingsFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return Default(), nil
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path. Existing files are only replaced when overwrite is set.
func Save(path string, cfg *Config, overwrite bool) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultSettingsFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	file, err := os.OpenFile(filepath.Clean(path), flags, DefaultFilePermissions)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s: %w", path, ErrSettingsExist)
	} else if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()

		return fmt.Errorf("write settings: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and rejects settings that would
// make packaging unsafe.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if strings.ContainsFunc(cfg.Target, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		return fmt.Errorf("%q: %w", cfg.Target, errInvalidTarget)
	}

	for _, name := range []string{cfg.CrateBinary, cfg.DistBinary} {
		if name != filepath.Base(name) || name == "." || name == ".." || name == DistConfigFilename {
			return fmt.Errorf("%q: %w", name, errInvalidName)
		}
	}

	projectDir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	distDir := cfg.DistPath()

	rel, err := filepath.Rel(distDir, projectDir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s: %w", distDir, errUnsafeDistDir)
	}

	return nil
}

// DistPath returns the absolute dist directory.
func (c *Config) DistPath() string {
	return c.resolve(c.DistDir)
}

// HistoryPath returns the absolute history file location.
func (c *Config) HistoryPath() string {
	return c.resolve(c.HistoryFile)
}

// ProjectPath returns the absolute project directory.
func (c *Config) ProjectPath() string {
	return c.resolve(".")
}

// resolve anchors relative paths at the project directory.
func (c *Config) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.ProjectDir, path)
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return filepath.Clean(path)
}

// applyDefaults fills every unset field. It touches no filesystem state.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.ProjectDir, ".")
	setDefault(&cfg.Target, DefaultTarget)
	setDefault(&cfg.BuildDriver, DefaultBuildDriver)
	setDefault(&cfg.CrossHelper, DefaultCrossHelper)
	setDefault(&cfg.CrateBinary, DefaultCrateBinary)
	setDefault(&cfg.DistDir, DefaultDistDir)
	setDefault(&cfg.DistBinary, DefaultDistBinary)
	setDefault(&cfg.HistoryFile, DefaultHistoryFile)
	setDefault(&cfg.LogLevel, DefaultLogLevel)
	setDefault(&cfg.ServerLogFilter, DefaultServerLogFilter)
}

func setDefault(field *string, value string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = value
	}
}
