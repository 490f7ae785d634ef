// Package validator checks backup inputs before anything touches the disk.
//
// Every check returns nil or an [*Issue] that unwraps to one of the
// sentinels in internal/errors, so callers can classify failures with
// errors.Is:
//
//	if err := validator.Destination(dest); err != nil {
//		// errors.Is(err, errors.ErrInvalidDestination) == true
//	}
//
// Permission checks use access(2) against the real user and group IDs, the
// same answer the shell's test -r/-w/-x would give.
package validator
