package commands

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/snapback/internal/backup"
	"github.com/thoreinstein/snapback/internal/cli/prompt"
	"github.com/thoreinstein/snapback/internal/errors"
)

var (
	systemDest        string
	systemExcludes    []string
	systemInteractive bool
)

// newMountSelector returns the interactive mount filter; tests replace it.
var newMountSelector = func() backup.SourceFilter {
	return prompt.NewSelector().SelectMounts
}

func init() {
	systemCmd.Flags().StringVarP(&systemDest, "dest", "d", "",
		"snapshot root (default: destination from config)")
	systemCmd.Flags().StringArrayVarP(&systemExcludes, "exclude", "e", nil,
		"rsync exclude pattern, repeatable")
	systemCmd.Flags().BoolVarP(&systemInteractive, "interactive", "i", false,
		"choose which mount points to back up")
	rootCmd.AddCommand(systemCmd)
}

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Take a hard-linked snapshot of every local filesystem",
	Long: `Snapshot every local mount point into <dest>/<YYYY-MM-DD>/.

Requires root. Mount points are read from the mount table; in-memory,
virtual and network filesystems are skipped, as is anything under the
configured skip prefixes (/media, /mnt, /run/media, /Volumes by default).
Each mount is copied with --one-file-system and keeps its absolute path
inside the snapshot.

Unchanged files are hard-linked against the snapshot <dest>/latest points
to. After a successful copy, latest is moved to the new snapshot and the
run log is finalized with start, end and total time. A failed copy leaves
latest where it was.`,
	Example: `  # Snapshot to the configured destination
  sudo snapback system

  # Pick mounts interactively
  sudo snapback system --dest /srv/snapshots --interactive

See Also: snapback doctor`,
	Args: noSources,
	RunE: runSystem,
}

// noSources rejects positional arguments; system backups probe their own.
func noSources(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return errors.NewUserError(errors.Wrapf(errors.ErrInvalidConfig, "unexpected arguments %q", args),
		"system backups discover their own sources; use --exclude to leave paths out")
}

func runSystem(cmd *cobra.Command, _ []string) error {
	c := loadedConfig()
	dest, err := resolveDestination(systemDest, c)
	if err != nil {
		return err
	}

	req := backup.Request{
		Mode:        backup.ModeSystem,
		Destination: dest,
		Excludes:    mergeExcludes(systemExcludes, c),
	}

	var extra []backup.Option
	if systemInteractive {
		extra = append(extra, backup.WithSourceFilter(newMountSelector()))
	}
	return runBackupWithWriter(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), req, extra...)
}
