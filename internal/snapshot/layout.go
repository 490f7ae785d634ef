package snapshot

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/thoreinstein/snapback/internal/errors"
)

// LatestName is the name of the pointer to the newest snapshot.
const LatestName = "latest"

// DirPerm is the mode of newly created snapshot directories.
const DirPerm = 0o755

// LogPerm is the mode of the run log.
const LogPerm = 0o600

// DirName returns the snapshot directory name for t.
func DirName(t time.Time) string {
	return t.Format("2006-01-02")
}

// LogName returns the run log file name for a run started at t.
func LogName(t time.Time) string {
	return "Backup_Summary_" + t.Format("15-04-05MST") + ".log"
}

// Latest returns the absolute path of the snapshot root/latest points to.
// It returns "" when there is no pointer or when its target is missing,
// and an error when root/latest exists but is not a symlink.
func Latest(root string) (string, error) {
	link := filepath.Join(root, LatestName)

	info, err := os.Lstat(link)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", link)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return "", errors.Wrapf(errors.ErrInvalidDestination, "%s exists and is not a symlink", link)
	}

	target, err := os.Readlink(link)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", link)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}

	st, err := os.Stat(target)
	if err != nil || !st.IsDir() {
		return "", nil
	}
	return filepath.Clean(target), nil
}

// Create makes the snapshot directory for t under root and returns its path.
// An existing directory from an earlier run the same day is reused.
func Create(root string, t time.Time) (string, error) {
	dir := filepath.Join(root, DirName(t))
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return "", errors.Wrapf(err, "creating snapshot directory %s", dir)
	}
	return dir, nil
}

// RetargetLatest points root/latest at snapshotDir. The new link is
// created under a temporary name and renamed over the old one, so readers
// see either the previous snapshot or the new one.
func RetargetLatest(root, snapshotDir string) error {
	target, err := filepath.Rel(root, snapshotDir)
	if err != nil {
		return errors.Wrapf(err, "relating %s to %s", snapshotDir, root)
	}

	link := filepath.Join(root, LatestName)
	tmp := filepath.Join(root, "."+LatestName+".tmp")

	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "removing stale %s", tmp)
	}
	if err := os.Symlink(target, tmp); err != nil {
		return errors.Wrapf(err, "creating symlink %s", tmp)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "replacing %s", link)
	}
	return nil
}
