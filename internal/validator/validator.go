package validator

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/thoreinstein/snapback/internal/errors"
)

// access is swapped in tests to simulate permission denial when running as root.
var access = unix.Access

// Issue describes why a path was rejected.
type Issue struct {
	// Path is the path that failed validation.
	Path string
	// Reason is a short human-readable explanation.
	Reason string
	// Kind is the sentinel the issue classifies as.
	Kind error
}

func (i *Issue) Error() string {
	return i.Kind.Error() + " " + i.Path + ": " + i.Reason
}

func (i *Issue) Unwrap() error {
	return i.Kind
}

// Source accepts a readable and searchable directory or a readable regular file.
func Source(path string) error {
	info, err := stat(path, errors.ErrInvalidSource)
	if err != nil {
		return err
	}

	switch {
	case info.IsDir():
		return checkAccess(path, unix.R_OK|unix.X_OK, "directory is not readable and searchable", errors.ErrInvalidSource)
	case info.Mode().IsRegular():
		return checkAccess(path, unix.R_OK, "file is not readable", errors.ErrInvalidSource)
	default:
		return &Issue{Path: path, Reason: "not a directory or regular file", Kind: errors.ErrInvalidSource}
	}
}

// Destination accepts a directory the caller can read, write, and search.
func Destination(path string) error {
	info, err := stat(path, errors.ErrInvalidDestination)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &Issue{Path: path, Reason: "not a directory", Kind: errors.ErrInvalidDestination}
	}
	return checkAccess(path, unix.R_OK|unix.W_OK|unix.X_OK, "directory is not readable, writable and searchable", errors.ErrInvalidDestination)
}

// File accepts a readable regular file.
func File(path string) error {
	info, err := stat(path, errors.ErrInvalidFile)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return &Issue{Path: path, Reason: "not a regular file", Kind: errors.ErrInvalidFile}
	}
	return checkAccess(path, unix.R_OK, "file is not readable", errors.ErrInvalidFile)
}

// Privileged requires the effective user to be root.
func Privileged(euid int) error {
	if euid != 0 {
		return errors.Wrapf(errors.ErrNotPrivileged, "running as uid %d", euid)
	}
	return nil
}

func stat(path string, kind error) (fs.FileInfo, error) {
	if path == "" {
		return nil, &Issue{Path: `""`, Reason: "path is empty", Kind: kind}
	}
	info, err := os.Stat(path)
	if err != nil {
		reason := err.Error()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			reason = "does not exist"
		case errors.Is(err, fs.ErrPermission):
			reason = "permission denied"
		}
		return nil, &Issue{Path: path, Reason: reason, Kind: kind}
	}
	return info, nil
}

func checkAccess(path string, mode uint32, reason string, kind error) error {
	if err := access(path, mode); err != nil {
		return &Issue{Path: path, Reason: reason, Kind: kind}
	}
	return nil
}
