package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/paths"
)

var (
	genDocDir    string
	genDocFormat string
)

var genDocCmd = &cobra.Command{
	Use:         "gen-doc",
	Short:       "Generate man pages or Markdown for the CLI",
	Hidden:      true,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if genDocDir == "" {
			return errors.NewUserError(errors.Wrap(errors.ErrInvalidConfig, "output directory is required"),
				"Run: snapback gen-doc --dir DIR")
		}

		if err := paths.EnsureDir(genDocDir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}

		var err error
		switch genDocFormat {
		case "man":
			header := &doc.GenManHeader{Title: "SNAPBACK", Section: "8", Source: "snapback"}
			err = doc.GenManTree(rootCmd, header, genDocDir)
		case "markdown", "md":
			err = doc.GenMarkdownTreeCustom(rootCmd, genDocDir, filePrepender, linkHandler)
		default:
			return errors.NewUserError(errors.Wrapf(errors.ErrInvalidConfig, "format %q", genDocFormat),
				"use --format man or --format markdown")
		}
		if err != nil {
			return errors.Wrap(err, "generating documentation")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Documentation generated in %s\n", genDocDir)
		return nil
	},
}

func init() {
	genDocCmd.Flags().StringVarP(&genDocDir, "dir", "d", "", "output directory for documentation")
	genDocCmd.Flags().StringVarP(&genDocFormat, "format", "f", "man", "output format: man, markdown")
	rootCmd.AddCommand(genDocCmd)
}

func filePrepender(filename string) string {
	name := filepath.Base(filename)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	// snapback_config_init.md -> snapback config init
	title := strings.ReplaceAll(base, "_", " ")

	return fmt.Sprintf("---\ntitle: %q\ndescription: \"Reference for %s\"\n---\n", title, title)
}

func linkHandler(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
}
