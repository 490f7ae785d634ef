package config

import (
	"path/filepath"
	"strings"

	"github.com/thoreinstein/snapback/internal/backup"
	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/rsync"
)

// Validation errors for configuration fields.
var (
	// ErrInvalidPath indicates a path value is malformed or relative.
	ErrInvalidPath = errors.New("invalid path")

	// ErrRequired indicates a field that must not be empty.
	ErrRequired = errors.New("value is required")

	// ErrUnknownValue indicates a value outside the accepted set.
	ErrUnknownValue = errors.New("unknown value")

	// ErrForbiddenArg indicates an rsync argument that would delete data.
	ErrForbiddenArg = errors.New("argument not allowed")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Destination != "" {
		if err := validatePath(cfg.Destination); err != nil {
			errs = append(errs, &FieldError{Field: "destination", Value: cfg.Destination, Err: err})
		}
	}

	for _, p := range cfg.Excludes {
		if strings.TrimSpace(p) == "" || strings.ContainsAny(p, "\n\r") {
			errs = append(errs, &FieldError{Field: "excludes", Value: p, Err: ErrUnknownValue})
		}
	}

	if cfg.Rsync.Binary == "" {
		errs = append(errs, &FieldError{Field: "rsync.binary", Err: ErrRequired})
	}
	if err := rsync.CheckExtraArgs(cfg.Rsync.ExtraArgs); err != nil {
		errs = append(errs, &FieldError{Field: "rsync.extra_args", Value: strings.Join(cfg.Rsync.ExtraArgs, " "), Err: ErrForbiddenArg})
	}

	switch cfg.Probe.Backend {
	case mounts.BackendPartitions, mounts.BackendTable:
	default:
		errs = append(errs, &FieldError{Field: "probe.backend", Value: cfg.Probe.Backend, Err: ErrUnknownValue})
	}
	for _, prefix := range cfg.Probe.SkipPrefixes {
		if err := validatePath(prefix); err != nil {
			errs = append(errs, &FieldError{Field: "probe.skip_prefixes", Value: prefix, Err: err})
		}
	}

	if _, err := backup.ParseSuffix(cfg.File.Suffix); err != nil {
		errs = append(errs, &FieldError{Field: "file.suffix", Value: cfg.File.Suffix, Err: ErrUnknownValue})
	}

	return errs
}

// validatePath requires a clean, absolute, NUL-free path.
func validatePath(path string) error {
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	if !filepath.IsAbs(path) {
		return errors.Wrap(ErrInvalidPath, "must be absolute")
	}
	return nil
}

// FieldError represents an error for a specific configuration key.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
