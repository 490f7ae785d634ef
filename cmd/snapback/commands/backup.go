package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/thoreinstein/snapback/internal/backup"
	"github.com/thoreinstein/snapback/internal/cli/prompt"
	"github.com/thoreinstein/snapback/internal/config"
	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/logging"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/paths"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/snapshot"
)

// newRunner builds the backup runner; tests replace it to inject fakes.
var newRunner = func(opts ...backup.Option) *backup.Runner {
	return backup.NewRunner(opts...)
}

// runnerOptions wires the configured rsync binary and mount probe into a
// Runner. Output from rsync goes to stdout and stderr unless quiet is set.
func runnerOptions(c *config.Config, stdout, stderr io.Writer) ([]backup.Option, error) {
	if quiet {
		stdout = io.Discard
	}

	probe, err := mounts.New(c.Probe.Backend, c.Probe.SkipPrefixes)
	if err != nil {
		return nil, err
	}

	syncer := rsync.New(
		rsync.WithBinary(c.Rsync.Binary),
		rsync.WithExtraArgs(c.Rsync.ExtraArgs...),
		rsync.WithOutput(stdout, stderr),
	)

	return []backup.Option{
		backup.WithSyncer(syncer),
		backup.WithProbe(probe),
	}, nil
}

// resolveDestination prefers the flag value over the config file.
func resolveDestination(flag string, c *config.Config) (string, error) {
	if flag == "" {
		return c.Destination, nil
	}
	return paths.ExpandHome(flag)
}

// mergeExcludes places flag patterns ahead of configured ones.
func mergeExcludes(flag []string, c *config.Config) []string {
	out := make([]string, 0, len(flag)+len(c.Excludes))
	out = append(out, flag...)
	return append(out, c.Excludes...)
}

// runBackupWithWriter executes req and prints a summary line to w.
func runBackupWithWriter(ctx context.Context, w, stderr io.Writer, req backup.Request, extra ...backup.Option) error {
	logger := logging.FromContext(ctx)

	opts, err := runnerOptions(loadedConfig(), w, stderr)
	if err != nil {
		return errors.NewConfigError(err)
	}
	opts = append(opts, extra...)

	logger.Debug("starting backup", "mode", req.Mode.String(), "sources", len(req.Sources), "destination", req.Destination)

	result, err := newRunner(opts...).Run(ctx, req)
	if err != nil {
		return decorate(err, req.Mode)
	}

	printResult(w, result)
	return nil
}

// decorate attaches a suggestion to errors the user can act on.
func decorate(err error, mode backup.Mode) error {
	if errors.Is(err, prompt.ErrSelectionCancelled) || errors.Is(err, prompt.ErrInvalidSelection) {
		return errors.NewUserError(err, "Run the command again and pick at least one mount point")
	}

	switch errors.KindOf(err) {
	case errors.KindConfiguration:
		return errors.NewUserError(err, fmt.Sprintf("Run: snapback %s --help", modeCommand(mode)))
	case errors.KindPrivilege:
		return errors.NewExitErrorWithSuggestion(err, errors.ExitNotPrivileged, "Run: sudo snapback system")
	default:
		return err
	}
}

func modeCommand(mode backup.Mode) string {
	switch mode {
	case backup.ModeDirectory:
		return "dir"
	case backup.ModeFile:
		return "file"
	case backup.ModeSystem:
		return "system"
	default:
		return ""
	}
}

func printResult(w io.Writer, r *backup.Result) {
	ok := color.New(color.FgGreen).SprintFunc()
	elapsed := snapshot.FormatDuration(r.Duration())

	switch r.Mode {
	case backup.ModeFile:
		for i, src := range r.Sources {
			fmt.Fprintf(w, "%s %s -> %s\n", ok("✓"), src, r.Copies[i])
		}
	case backup.ModeSystem:
		fmt.Fprintf(w, "%s snapshot %s complete in %s\n", ok("✓"), r.Destination, elapsed)
		if r.LinkDest != "" {
			fmt.Fprintf(w, "  linked against: %s\n", r.LinkDest)
		}
		fmt.Fprintf(w, "  log: %s\n", r.LogPath)
	default:
		fmt.Fprintf(w, "%s backed up %d source(s) to %s in %s\n", ok("✓"), len(r.Sources), r.Destination, elapsed)
	}
}
