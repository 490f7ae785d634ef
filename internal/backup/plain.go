package backup

import (
	"context"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/exclude"
	"github.com/thoreinstein/snapback/internal/logging"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/validator"
)

func (r *Runner) runDirectory(ctx context.Context, req Request) (*Result, error) {
	logger := logging.FromContext(ctx)

	if err := validateSources(req.Sources); err != nil {
		return nil, err
	}
	if err := validator.Destination(req.Destination); err != nil {
		return nil, err
	}

	excludeFile, cleanup, err := exclude.WriteFile(r.tempDir, exclude.Build(req.Excludes))
	if err != nil {
		return nil, err
	}
	defer cleanup()
	logger.Debug("wrote exclusion file", "path", excludeFile)

	res := &Result{
		Mode:        ModeDirectory,
		Sources:     req.Sources,
		Destination: req.Destination,
		Start:       r.now(),
	}
	job := rsync.Job{
		Mode:        rsync.ModePlain,
		Sources:     req.Sources,
		Destination: req.Destination,
		ExcludeFile: excludeFile,
	}
	if err := r.syncer.Sync(ctx, job, nil); err != nil {
		return nil, errors.Wrapf(err, "backing up to %s", req.Destination)
	}
	res.End = r.now()

	logger.Info("directory backup complete", "destination", req.Destination, "sources", len(req.Sources))
	return res, nil
}

func (r *Runner) runFile(ctx context.Context, req Request) (*Result, error) {
	logger := logging.FromContext(ctx)

	// Every file is checked before the first copy is made.
	for _, file := range req.Sources {
		if err := validator.File(file); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Mode:    ModeFile,
		Sources: req.Sources,
		Start:   r.now(),
	}
	for _, file := range req.Sources {
		copyPath, err := req.Suffix.Apply(file, res.Start)
		if err != nil {
			return nil, err
		}
		job := rsync.Job{
			Mode:        rsync.ModePlain,
			Sources:     []string{file},
			Destination: copyPath,
		}
		if err := r.syncer.Sync(ctx, job, nil); err != nil {
			return nil, errors.Wrapf(err, "copying %s", file)
		}
		res.Copies = append(res.Copies, copyPath)
		logger.Info("file backed up", "file", file, "copy", copyPath)
	}
	res.End = r.now()
	return res, nil
}
