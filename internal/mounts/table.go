package mounts

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/thoreinstein/snapback/internal/errors"
)

// tableArgs asks df for filesystem type and target only, with the in-memory
// types already excluded at the source.
var tableArgs = []string{"--output=fstype,target", "-x", "tmpfs", "-x", "devtmpfs"}

const targetHeader = "Mounted on"

// TableProbe reads the mount table from the tabular output of df.
type TableProbe struct {
	Filter Filter
	Binary string

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewTableProbe returns a probe that runs df.
func NewTableProbe(filter Filter) *TableProbe {
	return &TableProbe{
		Filter: filter,
		Binary: "df",
		run:    runOutput,
	}
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, errors.Wrap(err, msg)
		}
		return out, err
	}
	return out, nil
}

// Mounts returns the filtered mount points.
func (p *TableProbe) Mounts(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, p.Binary, tableArgs...)
	if err != nil {
		// df exits 1 when any listed filesystem is unreadable but still
		// prints the rest; only fail when nothing came back.
		if len(out) == 0 {
			return nil, errors.Wrapf(errors.Mark(err, ErrMountTable), "running %s", p.Binary)
		}
	}

	table, err := ParseTable(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	return p.Filter.Apply(table), nil
}

// ParseTable parses df-style output: a header row followed by one row per
// filesystem. The mount point is read from the column headed "Mounted on"
// to the end of the line so paths containing spaces survive. A leading
// "Type" column, when present, fills FSType.
func ParseTable(r io.Reader) ([]Mount, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(errors.Mark(err, ErrMountTable), "reading header")
		}
		return nil, errors.Wrap(ErrMountTable, "empty mount table")
	}

	header := scanner.Text()
	col := strings.Index(header, targetHeader)
	if col < 0 {
		return nil, errors.Wrapf(ErrMountTable, "no %q column in header %q", targetHeader, header)
	}
	hasType := strings.HasPrefix(strings.TrimSpace(header), "Type")

	var table []Mount
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var m Mount
		if len(line) > col {
			m.Path = strings.TrimSpace(line[col:])
		}
		if hasType {
			if fields := strings.Fields(line); len(fields) > 0 {
				m.FSType = fields[0]
			}
		}
		if m.Path == "" {
			// Misaligned row; fall back to the last field.
			fields := strings.Fields(line)
			m.Path = fields[len(fields)-1]
		}
		table = append(table, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrMountTable), "reading mount table")
	}
	return table, nil
}
