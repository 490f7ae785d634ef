// Package rsync runs the external rsync binary on behalf of a backup.
//
// Callers describe a copy as a [Job] and hand it to a [Syncer]. The
// production [Rsync] syncer builds the command line, streams rsync's stdout
// and stderr to the terminal and to a run log at the same time, and turns a
// non-zero exit into a [*SyncError] that carries rsync's exit status.
//
// Two modes exist. [ModePlain] copies sources into a destination.
// [ModeSnapshot] additionally keeps each source on its own filesystem,
// preserves absolute paths under the destination, and hard-links unchanged
// files against a previous snapshot through --link-dest. Neither mode ever
// deletes anything at the destination.
package rsync
