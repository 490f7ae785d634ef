// Package logging provides structured logging for the snapback CLI using slog.
//
// Diagnostic logs (what snapback is doing) go through slog to stderr and,
// optionally, a JSON log file. The rsync transcript written into a
// snapshot's run log is not a slog stream; see package snapshot.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//		Level:  logging.LevelFromVerbosity(verbosity),
//		Format: logging.FormatText,
//		Output: os.Stderr,
//	})
//	logger.Info("probing mounts", "backend", "partitions")
//
// Commands retrieve the logger from their context:
//
//	logger := logging.FromContext(cmd.Context())
//
// # Testing
//
// Use [ForTest] to route log output through the testing framework.
package logging
