// Package doctor runs diagnostic checks against the environment snapback
// depends on: the rsync binary, root privilege, the mount table, the
// configuration file and the backup destination.
//
// Each check implements [Check] and reports a [CheckResult] with a
// [Severity]. A [Runner] executes the registered checks in order and
// aggregates them into a [DoctorReport]. Checks that can remediate what they
// find also implement [Fixer].
package doctor
