package rsync

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/logging"
)

// DefaultBinary is the rsync executable looked up on PATH.
const DefaultBinary = "rsync"

// DefaultWaitDelay bounds how long rsync may keep running after it has been
// interrupted before it is killed.
const DefaultWaitDelay = 30 * time.Second

// baseArgs preserve permissions, ACLs, xattrs, hard links, devices and times.
var baseArgs = []string{"-aAXH", "--verbose", "--progress"}

// forbiddenArgs would remove data from the destination or the source.
var forbiddenArgs = []string{"--delete", "--del", "--remove-source-files", "--prune-empty-dirs"}

// Mode selects how a Job is copied.
type Mode int

const (
	// ModePlain copies sources into the destination.
	ModePlain Mode = iota + 1
	// ModeSnapshot copies mounts into a dated snapshot with hard links
	// against the previous one.
	ModeSnapshot
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Job is one rsync invocation.
type Job struct {
	Mode        Mode
	Sources     []string
	Destination string
	// ExcludeFile is passed as --exclude-from when set.
	ExcludeFile string
	// LinkDest is the previous snapshot; snapshot mode only.
	LinkDest string
}

// Syncer copies the sources of a Job to its destination, writing the
// tool's output to log as it is produced.
type Syncer interface {
	Sync(ctx context.Context, job Job, log io.Writer) error
}

// SyncError reports a non-zero exit from rsync.
type SyncError struct {
	ExitCode int
}

func (e *SyncError) Error() string {
	if e.ExitCode < 0 {
		return "rsync terminated by signal"
	}
	return "rsync exited with status " + strconv.Itoa(e.ExitCode)
}

// Unwrap classifies every SyncError as errors.ErrSyncFailed.
func (e *SyncError) Unwrap() error {
	return errors.ErrSyncFailed
}

// ExitStatus returns rsync's exit status so the process can pass it on.
func (e *SyncError) ExitStatus() int {
	return e.ExitCode
}

// Rsync runs the rsync binary.
type Rsync struct {
	binary    string
	extraArgs []string
	stdout    io.Writer
	stderr    io.Writer
	waitDelay time.Duration

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Option configures an Rsync.
type Option func(*Rsync)

// WithBinary overrides the rsync executable.
func WithBinary(path string) Option {
	return func(r *Rsync) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithExtraArgs appends arguments after the built-in ones.
func WithExtraArgs(args ...string) Option {
	return func(r *Rsync) {
		r.extraArgs = append(r.extraArgs, args...)
	}
}

// WithOutput sets where rsync's stdout and stderr are echoed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Rsync) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithWaitDelay sets the grace period after an interrupt.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Rsync) {
		r.waitDelay = d
	}
}

// New returns an Rsync echoing to the process's stdout and stderr.
func New(opts ...Option) *Rsync {
	r := &Rsync{
		binary:    DefaultBinary,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		waitDelay: DefaultWaitDelay,
		command:   exec.CommandContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the configured executable.
func (r *Rsync) Binary() string {
	return r.binary
}

// Args returns the command line for job, without the binary.
func (r *Rsync) Args(job Job) ([]string, error) {
	if job.Mode != ModePlain && job.Mode != ModeSnapshot {
		return nil, errors.Wrapf(errors.ErrInvalidBackupMode, "sync mode %d", int(job.Mode))
	}
	if len(job.Sources) == 0 {
		return nil, errors.ErrMissingSources
	}
	if job.Destination == "" {
		return nil, errors.ErrMissingDestination
	}
	if err := CheckExtraArgs(r.extraArgs); err != nil {
		return nil, err
	}

	args := make([]string, 0, len(baseArgs)+len(r.extraArgs)+len(job.Sources)+5)
	args = append(args, baseArgs...)
	args = append(args, r.extraArgs...)
	if job.ExcludeFile != "" {
		args = append(args, "--exclude-from="+job.ExcludeFile)
	}
	if job.Mode == ModeSnapshot {
		args = append(args, "--one-file-system", "--relative")
		if job.LinkDest != "" {
			args = append(args, "--link-dest="+job.LinkDest)
		}
	}
	args = append(args, job.Sources...)
	args = append(args, job.Destination)
	return args, nil
}

// CheckExtraArgs rejects user-supplied arguments that would delete data.
func CheckExtraArgs(args []string) error {
	for _, arg := range args {
		if isForbidden(arg) {
			return errors.Wrapf(errors.ErrInvalidConfig, "rsync argument %q is not allowed", arg)
		}
	}
	return nil
}

func isForbidden(arg string) bool {
	name, _, _ := strings.Cut(arg, "=")
	if strings.HasPrefix(name, "--delete-") {
		return true
	}
	for _, f := range forbiddenArgs {
		if name == f {
			return true
		}
	}
	return false
}

// Sync runs rsync for job. Output is echoed to the terminal writers and
// copied to log; log may be nil. Cancelling ctx interrupts rsync.
func (r *Rsync) Sync(ctx context.Context, job Job, log io.Writer) error {
	args, err := r.Args(job)
	if err != nil {
		return err
	}
	if log == nil {
		log = io.Discard
	}

	logger := logging.FromContext(ctx)
	logger.Debug("running rsync", "binary", r.binary, "mode", job.Mode.String(), "sources", len(job.Sources), "destination", job.Destination)
	logger.Log(ctx, logging.LevelTrace, "rsync command line", "args", strings.Join(args, " "))

	cmd := r.command(ctx, r.binary, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.waitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "opening rsync stdout")
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "opening rsync stderr")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s", r.binary)
	}

	shared := &lockedWriter{w: log}
	var g errgroup.Group
	g.Go(func() error { return pump(stdoutPipe, r.stdout, shared) })
	g.Go(func() error { return pump(stderrPipe, r.stderr, shared) })
	pumpErr := g.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			syncErr := &SyncError{ExitCode: exitErr.ExitCode()}
			logger.Debug("rsync failed", "exit", syncErr.ExitCode)
			if ctx.Err() != nil {
				return errors.Wrap(syncErr, "interrupted")
			}
			return syncErr
		}
		return errors.Wrapf(waitErr, "waiting for %s", r.binary)
	}
	if pumpErr != nil {
		return errors.Wrap(pumpErr, "copying rsync output")
	}

	logger.Debug("rsync finished")
	return nil
}

// Version returns the first line of `rsync --version`.
func (r *Rsync) Version(ctx context.Context) (string, error) {
	var out bytes.Buffer
	cmd := r.command(ctx, r.binary, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "running %s --version", r.binary)
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}

// pump copies src to both term and log. A failing sink does not stop the
// copy; the rest of src is drained so rsync never blocks on a full pipe.
func pump(src io.Reader, term io.Writer, log io.Writer) error {
	var firstErr error
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if term != nil {
				if _, werr := term.Write(chunk); werr != nil && firstErr == nil {
					firstErr = errors.Wrap(werr, "writing to terminal")
					term = nil
				}
			}
			if log != nil {
				if _, werr := log.Write(chunk); werr != nil && firstErr == nil {
					firstErr = errors.Wrap(werr, "writing to run log")
					log = nil
				}
			}
		}
		if err == io.EOF {
			return firstErr
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return firstErr
		}
	}
}

// lockedWriter serializes writes from the stdout and stderr pumps.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
