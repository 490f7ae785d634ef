package backup

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/exclude"
	"github.com/thoreinstein/snapback/internal/logging"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/snapshot"
	"github.com/thoreinstein/snapback/internal/validator"
)

func (r *Runner) runSystem(ctx context.Context, req Request) (*Result, error) {
	logger := logging.FromContext(ctx)

	root, err := filepath.Abs(req.Destination)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidDestination, "resolving %s: %v", req.Destination, err)
	}
	if root == "/" {
		return nil, errors.Wrap(errors.ErrInvalidDestination, "snapshot root cannot be /")
	}
	if err := validator.Destination(root); err != nil {
		return nil, err
	}
	previous, err := snapshot.Latest(root)
	if err != nil {
		return nil, err
	}

	sources, err := r.probe.Mounts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "probing mounts")
	}
	if len(sources) == 0 {
		return nil, errors.Wrap(mounts.ErrMountTable, "no eligible mount points")
	}
	logger.Debug("probed mounts", "mounts", sources)

	if r.filter != nil {
		sources, err = r.filter(ctx, slices.Clone(sources))
		if err != nil {
			return nil, errors.Wrap(err, "selecting mounts")
		}
		if len(sources) == 0 {
			return nil, errors.Wrap(errors.ErrMissingSources, "no mount points selected")
		}
	}
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	// The snapshot root lives on one of the copied filesystems more often
	// than not; never copy it into itself.
	patterns := exclude.Build(append(slices.Clone(req.Excludes), root+"/"))
	excludeFile, cleanup, err := exclude.WriteFile(r.tempDir, patterns)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	start := r.now()
	dir, err := snapshot.Create(root, start)
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(dir, snapshot.LogName(start))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, snapshot.LogPerm)
	if err != nil {
		return nil, errors.Wrapf(err, "creating run log %s", logPath)
	}
	defer logFile.Close()

	if err := snapshot.WriteHeader(logFile, start, sources, dir); err != nil {
		return nil, err
	}

	// A same-day rerun finds latest already pointing at today's directory.
	linkDest := previous
	if linkDest == dir {
		linkDest = ""
	}
	if linkDest == "" {
		logger.Info("no previous snapshot, taking a full copy", "snapshot", dir)
	} else {
		logger.Info("hard-linking against previous snapshot", "previous", linkDest, "snapshot", dir)
	}

	job := rsync.Job{
		Mode:        rsync.ModeSnapshot,
		Sources:     sources,
		Destination: dir,
		ExcludeFile: excludeFile,
		LinkDest:    linkDest,
	}
	if err := r.syncer.Sync(ctx, job, logFile); err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", dir)
	}
	end := r.now()

	if err := logFile.Close(); err != nil {
		return nil, errors.Wrapf(err, "closing run log %s", logPath)
	}
	if err := snapshot.RetargetLatest(root, dir); err != nil {
		return nil, err
	}
	if err := snapshot.FinalizeLog(logPath, start, end); err != nil {
		return nil, err
	}

	logger.Info("snapshot complete", "snapshot", dir, "duration", snapshot.FormatDuration(end.Sub(start)))
	return &Result{
		Mode:        ModeSystem,
		Sources:     sources,
		Destination: dir,
		LogPath:     logPath,
		LinkDest:    linkDest,
		Start:       start,
		End:         end,
	}, nil
}
