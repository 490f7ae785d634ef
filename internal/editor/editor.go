// Package editor launches the user's preferred text editor.
package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/thoreinstein/snapback/internal/errors"
)

// EnvEditor names the snapback-specific editor override.
const EnvEditor = "SNAPBACK_EDITOR"

// Open launches the editor for path and waits for it to exit. The editor
// inherits the terminal; w receives the location line.
//
// The command is taken from $SNAPBACK_EDITOR, $EDITOR, then $VISUAL, falling
// back to nano and then vi. Values may carry arguments ("code --wait").
func Open(ctx context.Context, w io.Writer, path string) error {
	argv := strings.Fields(detectEditor())

	fmt.Fprintf(w, "Location: %s\n", path)

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running editor %s", argv[0])
	}

	return nil
}

// detectEditor returns the editor command to use based on environment variables
// and available binaries.
func detectEditor() string {
	for _, env := range []string{EnvEditor, "EDITOR", "VISUAL"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}

	// User-friendly fallback (nano is easier for beginners)
	if _, err := exec.LookPath("nano"); err == nil {
		return "nano"
	}

	// POSIX standard fallback (vi is available on all Unix systems)
	return "vi"
}
