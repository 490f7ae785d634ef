package backup

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/logging"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/validator"
)

// SourceFilter narrows the probed mount points before a system backup.
// Returning an empty slice aborts the run.
type SourceFilter func(ctx context.Context, mounts []string) ([]string, error)

// Result describes a completed run.
type Result struct {
	Mode Mode
	// Sources are the paths handed to rsync.
	Sources []string
	// Destination is where data was written: the target directory, or the
	// snapshot directory for ModeSystem.
	Destination string
	// Copies holds the created paths for ModeFile.
	Copies []string
	// LogPath is the finalized run log for ModeSystem.
	LogPath string
	// LinkDest is the previous snapshot used for hard links, if any.
	LinkDest string
	Start    time.Time
	End      time.Time
}

// Duration returns the time spent in rsync.
func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Runner executes backup requests.
type Runner struct {
	syncer  rsync.Syncer
	probe   mounts.Probe
	now     func() time.Time
	euid    int
	tempDir string
	filter  SourceFilter
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSyncer sets the sync implementation.
func WithSyncer(s rsync.Syncer) Option {
	return func(r *Runner) {
		r.syncer = s
	}
}

// WithProbe sets the mount probe used by system backups.
func WithProbe(p mounts.Probe) Option {
	return func(r *Runner) {
		r.probe = p
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithEUID overrides the effective user ID used for the root check.
func WithEUID(euid int) Option {
	return func(r *Runner) {
		r.euid = euid
	}
}

// WithTempDir sets where the exclusion file is written.
func WithTempDir(dir string) Option {
	return func(r *Runner) {
		r.tempDir = dir
	}
}

// WithSourceFilter installs an interactive or programmatic mount filter.
func WithSourceFilter(f SourceFilter) Option {
	return func(r *Runner) {
		r.filter = f
	}
}

// WithLogger sets the logger. Without it the logger is taken from the
// context passed to Run.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner. Defaults: the rsync binary on PATH, the
// gopsutil mount probe with the default skip prefixes, the wall clock and
// the process's effective user ID.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		syncer: rsync.New(),
		probe:  mounts.NewPartitionProbe(mounts.Filter{SkipPrefixes: mounts.DefaultSkipPrefixes}),
		now:    time.Now,
		euid:   os.Geteuid(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates req and performs the backup it describes.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	logger := r.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	ctx = logging.NewContext(ctx, logger)

	// Root is checked before anything else, including the request shape.
	if req.Mode == ModeSystem {
		if err := validator.Privileged(r.euid); err != nil {
			return nil, err
		}
	}
	if err := req.Check(); err != nil {
		return nil, err
	}

	logger.Info("starting backup", "mode", req.Mode.String())

	switch req.Mode {
	case ModeDirectory:
		return r.runDirectory(ctx, req)
	case ModeFile:
		return r.runFile(ctx, req)
	case ModeSystem:
		return r.runSystem(ctx, req)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidBackupMode, "mode %d", int(req.Mode))
	}
}

func validateSources(sources []string) error {
	for _, src := range sources {
		if err := validator.Source(src); err != nil {
			return err
		}
	}
	return nil
}
