package errors

import (
	stderrors "errors"
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Exit codes for CLI applications.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a configuration error: no mode selected, missing
	// or conflicting flags, or an invalid configuration file.
	ExitUser = 1

	// ExitInvalidPath indicates an invalid source or destination path.
	ExitInvalidPath = 2

	// ExitInvalidFile indicates an invalid file for single-file backup.
	ExitInvalidFile = 3

	// ExitInvalidMode indicates an unrecognized backup mode tag.
	ExitInvalidMode = 4

	// ExitInvalidFileType indicates an unrecognized file-type (suffix) tag.
	ExitInvalidFileType = 5

	// ExitNotPrivileged indicates full-system mode was run without root.
	ExitNotPrivileged = 6

	// ExitSystem indicates a system-related error (I/O, mount table, etc.).
	ExitSystem = 10
)

// Constructors and inspectors from github.com/cockroachdb/errors.
var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Mark  = crdb.Mark
	Is    = crdb.Is
	As    = crdb.As
)

// Sentinel errors for configuration failures.
var (
	// ErrNoModeSelected indicates no backup mode was chosen.
	ErrNoModeSelected = crdb.New("no backup mode selected")

	// ErrMissingDestination indicates a mode that needs a destination got none.
	ErrMissingDestination = crdb.New("destination is required")

	// ErrMissingSources indicates a mode that needs sources got none.
	ErrMissingSources = crdb.New("at least one source is required")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = crdb.New("invalid configuration")
)

// Sentinel errors for validation failures.
var (
	// ErrInvalidSource indicates a source is neither a readable+executable
	// directory nor a readable regular file.
	ErrInvalidSource = crdb.New("invalid source")

	// ErrInvalidDestination indicates a destination is not a directory with
	// read, write and execute permission.
	ErrInvalidDestination = crdb.New("invalid destination")

	// ErrInvalidFile indicates a path is not a readable regular file.
	ErrInvalidFile = crdb.New("invalid file")
)

// ErrNotPrivileged indicates full-system mode was attempted without root.
var ErrNotPrivileged = crdb.New("full-system backup requires root privileges")

// Sentinel errors for internal contract violations.
var (
	// ErrInvalidBackupMode indicates an unrecognized backup or sync mode.
	ErrInvalidBackupMode = crdb.New("invalid backup mode")

	// ErrInvalidFileType indicates an unrecognized file-type (suffix) tag.
	ErrInvalidFileType = crdb.New("invalid file type")
)

// ErrSyncFailed indicates the external sync tool exited unsuccessfully.
var ErrSyncFailed = crdb.New("sync failed")

// Kind classifies an error for reporting and exit code selection.
type Kind int

const (
	// KindUnknown is any error not matching a known sentinel.
	KindUnknown Kind = iota
	// KindConfiguration covers missing modes, flags and configuration.
	KindConfiguration
	// KindValidation covers source, destination and file checks.
	KindValidation
	// KindPrivilege covers the root requirement of full-system mode.
	KindPrivilege
	// KindInternalMode covers unrecognized mode and file-type tags.
	KindInternalMode
	// KindSync covers failures of the external sync tool.
	KindSync
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindPrivilege:
		return "privilege"
	case KindInternalMode:
		return "internal mode"
	case KindSync:
		return "sync"
	default:
		return "unknown"
	}
}

// KindOf reports the Kind of err by matching it against the sentinels.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case isAny(err, ErrNoModeSelected, ErrMissingDestination, ErrMissingSources, ErrInvalidConfig):
		return KindConfiguration
	case isAny(err, ErrInvalidSource, ErrInvalidDestination, ErrInvalidFile):
		return KindValidation
	case crdb.Is(err, ErrNotPrivileged):
		return KindPrivilege
	case isAny(err, ErrInvalidBackupMode, ErrInvalidFileType):
		return KindInternalMode
	case crdb.Is(err, ErrSyncFailed):
		return KindSync
	default:
		return KindUnknown
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if crdb.Is(err, t) {
			return true
		}
	}
	return false
}

// exitStatuser is implemented by errors that carry an external process
// exit status, such as rsync.SyncError.
type exitStatuser interface {
	ExitStatus() int
}

// ExitCodeOf returns the process exit code for err.
//
// An explicit ExitError wins. Sync failures exit with the sync tool's own
// status. Everything else maps from its sentinel, falling back to
// ExitSystem.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	var st exitStatuser
	if stderrors.As(err, &st) && st.ExitStatus() > 0 {
		return st.ExitStatus()
	}

	switch {
	case KindOf(err) == KindConfiguration:
		return ExitUser
	case isAny(err, ErrInvalidSource, ErrInvalidDestination):
		return ExitInvalidPath
	case crdb.Is(err, ErrInvalidFile):
		return ExitInvalidFile
	case crdb.Is(err, ErrInvalidBackupMode):
		return ExitInvalidMode
	case crdb.Is(err, ErrInvalidFileType):
		return ExitInvalidFileType
	case crdb.Is(err, ErrNotPrivileged):
		return ExitNotPrivileged
	default:
		return ExitSystem
	}
}

// ExitError wraps an error with an exit code and optional suggestion for CLI applications.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewExitErrorWithSuggestion creates an ExitError with a suggestion.
func NewExitErrorWithSuggestion(err error, code int, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       code,
		Suggestion: suggestion,
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitSystem,
		Suggestion: suggestion,
	}
}

// NewConfigError creates an ExitError with ExitUser code and a standard suggestion.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Run: snapback doctor",
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
