package commands

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/snapback/internal/backup"
)

var (
	dirDest     string
	dirExcludes []string
)

func init() {
	dirCmd.Flags().StringVarP(&dirDest, "dest", "d", "",
		"destination directory (default: destination from config)")
	dirCmd.Flags().StringArrayVarP(&dirExcludes, "exclude", "e", nil,
		"rsync exclude pattern, repeatable")
	rootCmd.AddCommand(dirCmd)
}

var dirCmd = &cobra.Command{
	Use:     "dir SOURCE...",
	Aliases: []string{"directory"},
	Short:   "Copy directories or files into a destination directory",
	Long: `Copy each SOURCE into the destination directory with rsync.

Sources must be readable directories (with search permission) or readable
regular files. The destination must be a directory you can read, write and
enter. Nothing is ever deleted from the destination.

Patterns given with --exclude and the config file's excludes are placed
ahead of the built-in defaults (caches, thumbnails, browser storage, swap).`,
	Example: `  # Back up two directories
  snapback dir ~/projects ~/notes --dest /mnt/backup

  # Skip build output
  snapback dir ~/src --dest /mnt/backup --exclude 'node_modules/' --exclude '*.o'

See Also: snapback file, snapback system`,
	RunE: runDir,
}

func runDir(cmd *cobra.Command, args []string) error {
	c := loadedConfig()
	dest, err := resolveDestination(dirDest, c)
	if err != nil {
		return err
	}

	req := backup.Request{
		Mode:        backup.ModeDirectory,
		Sources:     args,
		Destination: dest,
		Excludes:    mergeExcludes(dirExcludes, c),
	}
	return runBackupWithWriter(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), req)
}
