package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/snapback/internal/config"
	"github.com/thoreinstein/snapback/internal/editor"
	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/paths"
	"github.com/thoreinstein/snapback/pkg/fileutil"
)

var (
	configShowFormat string
	configInitForce  bool
)

// openEditor launches the user's editor; tests replace it.
var openEditor = editor.Open

func init() {
	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", "yaml",
		"output format: yaml, toml")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false,
		"overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage snapback configuration",
	Long: `Manage snapback configuration stored in config.yaml.

The file is searched for in the current directory and then in the user
config directory (~/.config/snapback on Linux). SNAPBACK_CONFIG_DIR
overrides the latter. Every key can also be set through the environment,
for example SNAPBACK_DESTINATION or SNAPBACK_RSYNC_BINARY.

Without a subcommand, shows the effective configuration.`,
	Example: `  # Show effective configuration
  snapback config

  # Create the default config file
  snapback config init

See Also: snapback doctor`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after defaults, the config file and environment overrides are merged.`,
	Example: `  # As YAML
  snapback config show

  # As TOML
  snapback config show --format toml`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the default config file",
	Long:        `Write the default configuration to config.yaml in the user config directory.`,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runConfigInit,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in $EDITOR",
	Long: `Open the configuration file in your editor and validate it afterwards.

Uses $SNAPBACK_EDITOR, $EDITOR or $VISUAL, falling back to nano or vi.
If no configuration file exists, run 'snapback config init' first.`,
	Example: `  # Open config in default editor
  snapback config edit

  # Open with specific editor
  EDITOR=nano snapback config edit`,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file location",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), editableConfigPath())
		return nil
	},
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	return runConfigShowWithWriter(cmd.OutOrStdout(), loadedConfig(), configShowFormat)
}

// runConfigShowWithWriter allows injecting a writer for testing.
func runConfigShowWithWriter(w io.Writer, c *config.Config, format string) error {
	var data []byte
	var err error

	switch format {
	case "yaml", "yml":
		data, err = yaml.Marshal(c)
	case "toml":
		data, err = toml.Marshal(c)
	default:
		return errors.NewUserError(errors.Wrapf(errors.ErrInvalidConfig, "format %q", format),
			"use --format yaml or --format toml")
	}
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	_, err = w.Write(data)
	return err
}

// editableConfigPath returns the file config edit and config init act on.
func editableConfigPath() string {
	if p := configFileInUse(); p != "" {
		return p
	}
	return filepath.Join(config.Dir(), paths.ConfigFileName)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	return runConfigInitWithWriter(cmd.OutOrStdout(), editableConfigPath(), configInitForce)
}

// runConfigInitWithWriter allows injecting a writer for testing.
func runConfigInitWithWriter(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewUserError(errors.Wrapf(errors.ErrInvalidConfig, "config file already exists at %s", path),
			"Run: snapback config edit, or pass --force to overwrite")
	}

	if err := paths.EnsureDir(filepath.Dir(path), paths.DefaultDirPerm); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	if err := fileutil.AtomicWriteYAML(path, config.Default()); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	return runConfigEditWithWriter(cmd.Context(), cmd.OutOrStdout(), editableConfigPath())
}

// runConfigEditWithWriter opens path in the editor, then reloads it so a
// broken edit is reported straight away.
func runConfigEditWithWriter(ctx context.Context, w io.Writer, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.NewUserError(errors.Wrapf(errors.ErrInvalidConfig, "config file not found at %s", path),
			"Run: snapback config init")
	}

	if err := openEditor(ctx, w, path); err != nil {
		return err
	}

	config.Init()
	if _, err := config.Load(path); err != nil {
		return errors.NewConfigError(err)
	}

	fmt.Fprintln(w, "Config is valid.")
	return nil
}
