// Package backup sequences a snapback run.
//
// A CLI command builds one immutable [Request] and hands it to a [Runner].
// The Runner validates everything first, then writes the exclusion file,
// calls rsync through an rsync.Syncer, and for full-system runs finalizes
// the snapshot:
//
//	runner := backup.NewRunner(backup.WithSyncer(rsync.New()))
//	res, err := runner.Run(ctx, backup.Request{
//	    Mode:        backup.ModeSystem,
//	    Destination: "/backup",
//	})
//
// Three modes exist:
//
//   - [ModeDirectory] copies sources into a destination directory.
//   - [ModeFile] copies each file next to itself with a [Suffix] appended.
//   - [ModeSystem] copies every probed mount into <root>/<date>, hard-linking
//     against <root>/latest, writes a run log, and retargets latest.
//
// # Failure Guarantees
//
// Nothing on disk changes until validation has passed. Full-system runs
// check for root before anything else. The temporary exclusion file is
// removed on every return path, including sync failure and cancellation.
// A failed sync leaves latest pointing at the previous snapshot.
package backup
