package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/exclude"
	"github.com/thoreinstein/snapback/internal/logging"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/snapshot"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, job rsync.Job, log io.Writer) error {
	return m.Called(ctx, job, log).Error(0)
}

type mockProbe struct {
	mock.Mock
}

func (m *mockProbe) Mounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]string)
	return v, args.Error(1)
}

var runStart = time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)

// steppingClock returns start, start+step, start+2*step, ...
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type fixture struct {
	root    string
	tempDir string
	sources []string
	syncer  *mockSyncer
	probe   *mockProbe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		root:    t.TempDir(),
		tempDir: t.TempDir(),
		sources: []string{t.TempDir(), t.TempDir()},
		syncer:  &mockSyncer{},
		probe:   &mockProbe{},
	}
	t.Cleanup(func() {
		f.syncer.AssertExpectations(t)
		f.probe.AssertExpectations(t)
	})
	return f
}

func (f *fixture) runner(t *testing.T, start time.Time, opts ...Option) *Runner {
	base := []Option{
		WithSyncer(f.syncer),
		WithProbe(f.probe),
		WithClock(steppingClock(start, 3661*time.Second)),
		WithEUID(0),
		WithTempDir(f.tempDir),
		WithLogger(logging.ForTest(t)),
	}
	return NewRunner(append(base, opts...)...)
}

func (f *fixture) assertNoTempFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "exclusion file must not outlive the run")
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "%s must not be modified", dir)
}

// writeProgress simulates rsync streaming into the run log.
func writeProgress(args mock.Arguments) {
	w, _ := args.Get(2).(io.Writer)
	_, _ = io.WriteString(w, "sending incremental file list\n"+
		"etc/hosts\n"+
		"\r    100  50%\r    200 100%    0:00:00 (xfr#1, to-chk=0/1)\n"+
		"sent 300 bytes\n")
}

func TestRun_SystemFirstSnapshot(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()

	var seenJob rsync.Job
	var seenPatterns string
	f.syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			seenJob = args.Get(1).(rsync.Job)
			data, err := os.ReadFile(seenJob.ExcludeFile)
			require.NoError(t, err)
			seenPatterns = string(data)
			writeProgress(args)
		}).
		Return(nil).Once()

	res, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:        ModeSystem,
		Destination: f.root,
		Excludes:    []string{"*.iso"},
	})
	require.NoError(t, err)

	snapDir := filepath.Join(f.root, "2026-10-19")
	assert.Equal(t, rsync.ModeSnapshot, seenJob.Mode)
	assert.Equal(t, f.sources, seenJob.Sources)
	assert.Equal(t, snapDir, seenJob.Destination)
	assert.Empty(t, seenJob.LinkDest, "first run has nothing to link against")

	wantPatterns := exclude.Build([]string{"*.iso", f.root + "/"})
	assert.Equal(t, strings.Join(wantPatterns, "\n")+"\n", seenPatterns)

	target, err := os.Readlink(filepath.Join(f.root, snapshot.LatestName))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", target)

	assert.Equal(t, filepath.Join(snapDir, "Backup_Summary_02-00-00UTC.log"), res.LogPath)
	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	log := string(data)
	assert.NotContains(t, log, "\r")
	assert.Contains(t, log, "Backup started: Mon Oct 19 02:00:00 UTC 2026")
	assert.Contains(t, log, "sending incremental file list\netc/hosts\nsent 300 bytes\n")
	assert.Contains(t, log, "Backup Results")
	assert.Contains(t, log, "Total Time: 1 hours, 1 minutes, 1 seconds")

	assert.Equal(t, 3661*time.Second, res.Duration())
	assert.Equal(t, snapDir, res.Destination)
	f.assertNoTempFiles(t)
}

func TestRun_SystemSecondDayLinksAgainstPrevious(t *testing.T) {
	f := newFixture(t)
	prev := filepath.Join(f.root, "2026-10-18")
	require.NoError(t, os.Mkdir(prev, 0o755))
	marker := filepath.Join(prev, "etc-hosts")
	require.NoError(t, os.WriteFile(marker, []byte("127.0.0.1"), 0o644))
	require.NoError(t, os.Symlink("2026-10-18", filepath.Join(f.root, snapshot.LatestName)))

	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()
	f.syncer.On("Sync", mock.Anything, mock.MatchedBy(func(job rsync.Job) bool {
		return job.LinkDest == prev && job.Destination == filepath.Join(f.root, "2026-10-19")
	}), mock.Anything).Return(nil).Once()

	res, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.NoError(t, err)
	assert.Equal(t, prev, res.LinkDest)

	target, err := os.Readlink(filepath.Join(f.root, snapshot.LatestName))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", target)
	assert.FileExists(t, marker, "previous snapshot must be left intact")
}

func TestRun_SystemSameDayRerun(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Twice()
	f.syncer.On("Sync", mock.Anything, mock.MatchedBy(func(job rsync.Job) bool {
		return job.LinkDest == ""
	}), mock.Anything).Return(nil).Twice()

	first, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.NoError(t, err)

	second, err := f.runner(t, runStart.Add(4*time.Hour)).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.NoError(t, err)

	assert.Equal(t, first.Destination, second.Destination)
	assert.FileExists(t, first.LogPath, "earlier log from the same day must survive")
	assert.FileExists(t, second.LogPath)
	assert.NotEqual(t, first.LogPath, second.LogPath)

	latest, err := snapshot.Latest(f.root)
	require.NoError(t, err)
	assert.Equal(t, second.Destination, latest)
}

func TestRun_SystemRequiresRoot(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart, WithEUID(1000)).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotPrivileged))
	assert.Equal(t, errors.KindPrivilege, errors.KindOf(err))

	assertEmptyDir(t, f.root)
	f.assertNoTempFiles(t)
	f.probe.AssertNotCalled(t, "Mounts", mock.Anything)
	f.syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_SystemPrivilegeCheckedFirst(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart, WithEUID(1000)).Run(t.Context(), Request{Mode: ModeSystem})
	assert.True(t, errors.Is(err, errors.ErrNotPrivileged), "err = %v", err)
}

func TestRun_SystemSyncFailure(t *testing.T) {
	f := newFixture(t)
	prev := filepath.Join(f.root, "2026-10-18")
	require.NoError(t, os.Mkdir(prev, 0o755))
	require.NoError(t, os.Symlink("2026-10-18", filepath.Join(f.root, snapshot.LatestName)))

	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()
	f.syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).
		Run(writeProgress).
		Return(&rsync.SyncError{ExitCode: 23}).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSyncFailed))
	assert.Equal(t, 23, errors.ExitCodeOf(err))

	f.assertNoTempFiles(t)

	latest, err := snapshot.Latest(f.root)
	require.NoError(t, err)
	assert.Equal(t, prev, latest, "latest must keep pointing at the last good snapshot")

	data, err := os.ReadFile(filepath.Join(f.root, "2026-10-19", "Backup_Summary_02-00-00UTC.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Backup Results", "failed runs are not finalized")
}

func TestRun_SystemCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())

	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()
	f.syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(errors.Wrap(&rsync.SyncError{ExitCode: 20}, "interrupted")).Once()

	_, err := f.runner(t, runStart).Run(ctx, Request{Mode: ModeSystem, Destination: f.root})
	require.Error(t, err)
	assert.Equal(t, 20, errors.ExitCodeOf(err))
	f.assertNoTempFiles(t)
}

func TestRun_SystemInvalidDestination(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.root, "missing")

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: missing})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDestination))
	assert.Equal(t, errors.ExitInvalidPath, errors.ExitCodeOf(err))

	assertEmptyDir(t, f.root)
	f.assertNoTempFiles(t)
}

func TestRun_SystemRejectsFilesystemRoot(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: "/"})
	assert.True(t, errors.Is(err, errors.ErrInvalidDestination), "err = %v", err)
}

func TestRun_SystemLatestNotSymlink(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Mkdir(filepath.Join(f.root, snapshot.LatestName), 0o755))

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	assert.True(t, errors.Is(err, errors.ErrInvalidDestination), "err = %v", err)
	assert.NoDirExists(t, filepath.Join(f.root, "2026-10-19"))
}

func TestRun_SystemProbeFailure(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).
		Return(nil, errors.Wrap(mounts.ErrMountTable, "permission denied")).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mounts.ErrMountTable))

	assertEmptyDir(t, f.root)
	f.assertNoTempFiles(t)
}

func TestRun_SystemNoMounts(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).Return([]string{}, nil).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	assert.True(t, errors.Is(err, mounts.ErrMountTable))
}

func TestRun_SystemInvalidProbedSource(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).
		Return([]string{f.sources[0], filepath.Join(f.root, "gone")}, nil).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	assert.True(t, errors.Is(err, errors.ErrInvalidSource), "err = %v", err)
	assertEmptyDir(t, f.root)
	f.assertNoTempFiles(t)
}

func TestRun_SystemSourceFilter(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()
	f.syncer.On("Sync", mock.Anything, mock.MatchedBy(func(job rsync.Job) bool {
		return len(job.Sources) == 1 && job.Sources[0] == f.sources[1]
	}), mock.Anything).Return(nil).Once()

	filter := func(_ context.Context, ms []string) ([]string, error) {
		return ms[1:], nil
	}

	res, err := f.runner(t, runStart, WithSourceFilter(filter)).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{f.sources[1]}, res.Sources)
}

func TestRun_SystemSourceFilterSelectsNothing(t *testing.T) {
	f := newFixture(t)
	f.probe.On("Mounts", mock.Anything).Return(f.sources, nil).Once()

	filter := func(context.Context, []string) ([]string, error) { return nil, nil }

	_, err := f.runner(t, runStart, WithSourceFilter(filter)).Run(t.Context(), Request{Mode: ModeSystem, Destination: f.root})
	assert.True(t, errors.Is(err, errors.ErrMissingSources), "err = %v", err)
	assertEmptyDir(t, f.root)
}

func TestRun_Directory(t *testing.T) {
	f := newFixture(t)

	f.syncer.On("Sync", mock.Anything, mock.Anything, nil).
		Run(func(args mock.Arguments) {
			job := args.Get(1).(rsync.Job)
			assert.Equal(t, rsync.ModePlain, job.Mode)
			assert.Equal(t, f.sources, job.Sources)
			assert.Equal(t, f.root, job.Destination)
			assert.Empty(t, job.LinkDest)
			assert.FileExists(t, job.ExcludeFile)
		}).
		Return(nil).Once()

	res, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:        ModeDirectory,
		Sources:     f.sources,
		Destination: f.root,
	})
	require.NoError(t, err)
	assert.Equal(t, f.root, res.Destination)
	assert.Empty(t, res.LogPath)
	f.assertNoTempFiles(t)
}

func TestRun_DirectoryDoesNotNeedRoot(t *testing.T) {
	f := newFixture(t)
	f.syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.runner(t, runStart, WithEUID(1000)).Run(t.Context(), Request{
		Mode:        ModeDirectory,
		Sources:     f.sources[:1],
		Destination: f.root,
	})
	assert.NoError(t, err)
}

func TestRun_DirectoryInvalidSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:        ModeDirectory,
		Sources:     []string{f.sources[0], filepath.Join(f.root, "nope")},
		Destination: f.root,
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidSource))
	f.assertNoTempFiles(t)
}

func TestRun_DirectoryUnwritableDestination(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("access(2) always succeeds for root")
	}
	f := newFixture(t)
	ro := filepath.Join(f.root, "ro")
	require.NoError(t, os.Mkdir(ro, 0o555))
	t.Cleanup(func() { _ = os.Chmod(ro, 0o755) })

	_, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:        ModeDirectory,
		Sources:     f.sources,
		Destination: ro,
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidDestination))
	assertEmptyDir(t, ro)
	f.assertNoTempFiles(t)
}

func TestRun_DirectorySyncFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).
		Return(&rsync.SyncError{ExitCode: 11}).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:        ModeDirectory,
		Sources:     f.sources,
		Destination: f.root,
	})
	assert.Equal(t, 11, errors.ExitCodeOf(err))
	f.assertNoTempFiles(t)
}

func TestRun_File(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.conf")
	b := filepath.Join(dir, "b.conf")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	f.syncer.On("Sync", mock.Anything, rsync.Job{
		Mode: rsync.ModePlain, Sources: []string{a}, Destination: a + ".2026-10-19_02-00-00",
	}, nil).Return(nil).Once()
	f.syncer.On("Sync", mock.Anything, rsync.Job{
		Mode: rsync.ModePlain, Sources: []string{b}, Destination: b + ".2026-10-19_02-00-00",
	}, nil).Return(nil).Once()

	res, err := f.runner(t, runStart, WithEUID(1000)).Run(t.Context(), Request{
		Mode:    ModeFile,
		Sources: []string{a, b},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{a + ".2026-10-19_02-00-00", b + ".2026-10-19_02-00-00"}, res.Copies)
	f.assertNoTempFiles(t)
}

func TestRun_FileBakSuffix(t *testing.T) {
	f := newFixture(t)
	file := filepath.Join(t.TempDir(), "fstab")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	f.syncer.On("Sync", mock.Anything, mock.MatchedBy(func(job rsync.Job) bool {
		return job.Destination == file+".bak"
	}), nil).Return(nil).Once()

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeFile, Sources: []string{file}, Suffix: SuffixBak})
	assert.NoError(t, err)
}

func TestRun_FileValidatesAllBeforeCopying(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	require.NoError(t, os.WriteFile(good, nil, 0o644))

	_, err := f.runner(t, runStart).Run(t.Context(), Request{
		Mode:    ModeFile,
		Sources: []string{good, dir},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidFile))
	assert.Equal(t, errors.ExitInvalidFile, errors.ExitCodeOf(err))
	f.syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_FileInvalidSuffix(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart).Run(t.Context(), Request{Mode: ModeFile, Sources: []string{"x"}, Suffix: "zip"})
	assert.True(t, errors.Is(err, errors.ErrInvalidFileType))
}

func TestRun_NoMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner(t, runStart).Run(t.Context(), Request{})
	assert.True(t, errors.Is(err, errors.ErrNoModeSelected))
	assert.Equal(t, errors.ExitUser, errors.ExitCodeOf(err))
}
