package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/pkg/fileutil"
)

// stampLayout matches date(1).
const stampLayout = "Mon Jan _2 15:04:05 MST 2006"

const rule = "=============================="

// FormatDuration renders d in whole seconds as hours, minutes and seconds,
// leaving out leading units that are zero. Unit names are always plural.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%d hours, %d minutes, %d seconds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d minutes, %d seconds", m, s)
	default:
		return fmt.Sprintf("%d seconds", s)
	}
}

// WriteHeader writes the opening lines of a run log.
func WriteHeader(w io.Writer, start time.Time, sources []string, destination string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup started: %s\n", start.Format(stampLayout))
	fmt.Fprintf(&b, "Destination: %s\n", destination)
	fmt.Fprintf(&b, "Sources: %s\n\n", strings.Join(sources, " "))
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing log header")
}

// WriteResults writes the "Backup Results" section.
func WriteResults(w io.Writer, start, end time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nBackup Results\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Start Time: %s\n", start.Format(stampLayout))
	fmt.Fprintf(&b, "End Time:   %s\n", end.Format(stampLayout))
	fmt.Fprintf(&b, "Total Time: %s\n", FormatDuration(end.Sub(start)))
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing results")
}

// StripProgress copies r to w, dropping every line that contains a
// carriage return. Kept lines stay in order and always end in a newline.
func StripProgress(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 && !strings.ContainsRune(line, '\r') {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			if _, werr := bw.WriteString(line); werr != nil {
				return errors.Wrap(werr, "writing log")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading log")
		}
	}
	return errors.Wrap(bw.Flush(), "writing log")
}

// FinalizeLog appends the results section to the log at path and rewrites
// it without progress lines. The rewrite is atomic; on failure the raw log
// is left in place.
func FinalizeLog(path string, start, end time.Time) error {
	return fileutil.AtomicWriteFunc(path, LogPerm, func(w io.Writer) error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()

		if err := StripProgress(f, w); err != nil {
			return err
		}
		return WriteResults(w, start, end)
	})
}
