// Package errors provides error handling conventions for the snapback CLI.
//
// It re-exports the constructors and inspectors of
// github.com/cockroachdb/errors so that the rest of the module imports a
// single errors package, and adds the sentinel errors, error kinds and exit
// codes that the CLI maps failures onto.
//
// # Error Kinds
//
// Every failure belongs to one [Kind]:
//
//   - KindConfiguration: no mode selected, missing or conflicting flags
//   - KindValidation: a source, destination or file failed its access check
//   - KindPrivilege: full-system mode without root
//   - KindInternalMode: an unrecognized backup mode or file-type tag
//   - KindSync: the external sync tool exited non-zero
//
// Tests and callers should assert on kinds and sentinels rather than
// numeric exit codes:
//
//	if errors.KindOf(err) == errors.KindPrivilege {
//	    // ...
//	}
//
// # Exit Codes
//
// [ExitCodeOf] maps an error to the process exit status. A sync failure
// exits with the sync tool's own status; every other kind has a fixed code.
//
// # ExitError
//
// [ExitError] attaches an explicit exit code and an optional suggestion to
// an error:
//
//	err := errors.NewUserError(errors.ErrNoModeSelected, "Run: snapback --help")
//	var exitErr *errors.ExitError
//	if errors.As(err, &exitErr) && exitErr.Suggestion != "" {
//	    fmt.Println("Suggestion:", exitErr.Suggestion)
//	}
package errors
