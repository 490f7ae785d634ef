// Package snapshot owns the on-disk layout of full-system snapshots and the
// steps that run after rsync succeeds.
//
// A destination root looks like this:
//
//	<root>/2026-10-18/
//	<root>/2026-10-19/Backup_Summary_02-00-00UTC.log
//	<root>/latest -> 2026-10-19
//
// One directory exists per calendar day. The latest symlink is relative so
// the root can be moved or mounted elsewhere, and it is replaced with a
// rename so it is never missing, even briefly.
package snapshot
