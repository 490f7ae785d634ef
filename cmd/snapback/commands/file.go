package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/snapback/internal/backup"
)

var fileSuffix string

func init() {
	fileCmd.Flags().StringVarP(&fileSuffix, "suffix", "s", "",
		fmt.Sprintf("suffix kind: %s (default: file.suffix from config)", suffixNames()))
	rootCmd.AddCommand(fileCmd)
}

var fileCmd = &cobra.Command{
	Use:   "file FILE...",
	Short: "Make a suffixed copy of each file next to itself",
	Long: `Copy each FILE to a sibling path with a suffix appended.

Suffix kinds:
  timestamp   .YYYY-MM-DD_HH-MM-SS (default)
  date        .YYYY-MM-DD
  bak         .bak

Every file is checked before any copy is made, so one unreadable file
means no copies at all.`,
	Example: `  # Timestamped copy
  snapback file /etc/fstab

  # Daily copy of several files
  snapback file --suffix date ~/.bashrc ~/.profile

See Also: snapback dir`,
	RunE: runFile,
}

func runFile(cmd *cobra.Command, args []string) error {
	suffix := loadedConfig().File.Suffix
	if cmd.Flags().Changed("suffix") {
		suffix = fileSuffix
	}

	req := backup.Request{
		Mode:    backup.ModeFile,
		Sources: args,
		Suffix:  backup.Suffix(suffix),
	}
	return runBackupWithWriter(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), req)
}

func suffixNames() string {
	names := make([]string, len(backup.Suffixes))
	for i, s := range backup.Suffixes {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
