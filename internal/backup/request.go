package backup

import (
	"time"

	"github.com/thoreinstein/snapback/internal/errors"
)

// Mode is the kind of backup a Request asks for.
type Mode int

const (
	// ModeDirectory copies sources into a destination directory.
	ModeDirectory Mode = iota + 1
	// ModeFile makes a suffixed copy of each source file beside it.
	ModeFile
	// ModeSystem takes a dated hard-link snapshot of every real mount.
	ModeSystem
)

func (m Mode) String() string {
	switch m {
	case ModeDirectory:
		return "directory"
	case ModeFile:
		return "file"
	case ModeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Suffix names the scheme used to name file-mode copies.
type Suffix string

const (
	// SuffixTimestamp appends .YYYY-MM-DD_HH-MM-SS.
	SuffixTimestamp Suffix = "timestamp"
	// SuffixDate appends .YYYY-MM-DD.
	SuffixDate Suffix = "date"
	// SuffixBak appends .bak.
	SuffixBak Suffix = "bak"
)

// Suffixes lists the accepted suffix names.
var Suffixes = []Suffix{SuffixTimestamp, SuffixDate, SuffixBak}

// ParseSuffix maps a name to a Suffix. The empty string selects
// SuffixTimestamp.
func ParseSuffix(s string) (Suffix, error) {
	if s == "" {
		return SuffixTimestamp, nil
	}
	for _, known := range Suffixes {
		if Suffix(s) == known {
			return known, nil
		}
	}
	return "", errors.Wrapf(errors.ErrInvalidFileType, "unknown suffix %q", s)
}

// Apply returns the backup name for path at time t.
func (s Suffix) Apply(path string, t time.Time) (string, error) {
	switch s {
	case SuffixTimestamp, "":
		return path + "." + t.Format("2006-01-02_15-04-05"), nil
	case SuffixDate:
		return path + "." + t.Format("2006-01-02"), nil
	case SuffixBak:
		return path + ".bak", nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidFileType, "unknown suffix %q", string(s))
	}
}

// Request describes one backup run. It is built once by the CLI and
// passed by value.
type Request struct {
	Mode Mode
	// Sources are directories or files for ModeDirectory and files for
	// ModeFile. ModeSystem discovers its sources and takes none here.
	Sources []string
	// Destination is the target directory for ModeDirectory and the
	// snapshot root for ModeSystem. Unused by ModeFile.
	Destination string
	// Excludes are user patterns placed ahead of the built-in defaults.
	Excludes []string
	// Suffix applies to ModeFile only.
	Suffix Suffix
}

// Check verifies the request is well formed. It does not touch the
// filesystem; see Runner.Run for path validation.
func (r Request) Check() error {
	switch r.Mode {
	case 0:
		return errors.ErrNoModeSelected
	case ModeDirectory:
		if len(r.Sources) == 0 {
			return errors.Wrap(errors.ErrMissingSources, "directory backup")
		}
		if r.Destination == "" {
			return errors.Wrap(errors.ErrMissingDestination, "directory backup")
		}
	case ModeFile:
		if len(r.Sources) == 0 {
			return errors.Wrap(errors.ErrMissingSources, "file backup")
		}
		if _, err := ParseSuffix(string(r.Suffix)); err != nil {
			return err
		}
	case ModeSystem:
		if r.Destination == "" {
			return errors.Wrap(errors.ErrMissingDestination, "system backup")
		}
		if len(r.Sources) > 0 {
			return errors.Wrap(errors.ErrInvalidConfig, "system backup discovers its own sources")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidBackupMode, "mode %d", int(r.Mode))
	}
	return nil
}
