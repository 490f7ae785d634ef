package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thoreinstein/snapback/internal/backup"
	"github.com/thoreinstein/snapback/internal/config"
	"github.com/thoreinstein/snapback/internal/rsync"
)

// isolateConfig points config discovery at an empty temp dir and returns it.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.DirEnv, dir)
	t.Chdir(t.TempDir())
	return dir
}

func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetFlags restores every flag in the tree to its default so state does
// not leak between executions of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs rootCmd with args and returns what it wrote.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(closeLogFile)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeSyncer records jobs and, when inspect is set, runs it while the job
// is live so the exclusion file can be read.
type fakeSyncer struct {
	mu      sync.Mutex
	jobs    []rsync.Job
	err     error
	inspect func(rsync.Job)
}

func (f *fakeSyncer) Sync(_ context.Context, job rsync.Job, log io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.inspect != nil {
		f.inspect(job)
	}
	if log != nil {
		_, _ = io.WriteString(log, "sending incremental file list\n")
	}
	return f.err
}

// stubRunner appends opts after the CLI's own options.
func stubRunner(t *testing.T, opts ...backup.Option) {
	t.Helper()
	orig := newRunner
	newRunner = func(base ...backup.Option) *backup.Runner {
		return backup.NewRunner(append(base, opts...)...)
	}
	t.Cleanup(func() { newRunner = orig })
}
