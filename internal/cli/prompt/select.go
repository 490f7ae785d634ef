// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	"golang.org/x/term"

	"github.com/thoreinstein/snapback/internal/errors"
)

// Sentinel errors for mount selection.
var (
	ErrNoMounts           = errors.New("no mount points to select from")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// findFunc matches the signature of fuzzyfinder.FindMulti.
type findFunc func(slice any, itemFunc func(i int) string, opts ...fuzzyfinder.Option) ([]int, error)

// Selector handles interactive mount selection prompts.
type Selector struct {
	reader io.Reader
	writer io.Writer
	fuzzy  bool
	find   findFunc
}

// NewSelector creates a Selector on stdin and stdout. The fuzzy finder is
// used when both are terminals; otherwise a numbered list is printed.
func NewSelector() *Selector {
	return &Selector{
		reader: os.Stdin,
		writer: os.Stdout,
		fuzzy:  term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())),
		find:   fuzzyfinder.FindMulti,
	}
}

// NewSelectorWithIO creates a Selector with custom reader and writer for testing.
// It always uses the numbered list.
func NewSelectorWithIO(r io.Reader, w io.Writer) *Selector {
	return &Selector{
		reader: r,
		writer: w,
		find:   fuzzyfinder.FindMulti,
	}
}

// SelectMounts asks which of the probed mount points to back up. The result
// keeps the order of mounts.
//
// Returns:
//   - ErrNoMounts if the list is empty
//   - ErrInvalidSelection if the input cannot be parsed or is out of range
//   - ErrSelectionCancelled if input ends (Ctrl+D) or the finder is aborted
func (s *Selector) SelectMounts(ctx context.Context, mounts []string) ([]string, error) {
	if len(mounts) == 0 {
		return nil, ErrNoMounts
	}

	var idx []int
	var err error
	if s.fuzzy {
		idx, err = s.findMounts(ctx, mounts)
	} else {
		idx, err = s.promptMounts(mounts)
	}
	if err != nil {
		return nil, err
	}

	slices.Sort(idx)
	idx = slices.Compact(idx)

	selected := make([]string, 0, len(idx))
	for _, i := range idx {
		selected = append(selected, mounts[i])
	}
	return selected, nil
}

func (s *Selector) findMounts(ctx context.Context, mounts []string) ([]int, error) {
	idx, err := s.find(
		mounts,
		func(i int) string { return mounts[i] },
		fuzzyfinder.WithContext(ctx),
		fuzzyfinder.WithHeader("Tab to mark mount points, Enter to confirm"),
		fuzzyfinder.WithPromptString("mounts> "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "mount selection failed")
	}
	return idx, nil
}

func (s *Selector) promptMounts(mounts []string) ([]int, error) {
	fmt.Fprintln(s.writer, "Mount points found:")
	for i, m := range mounts {
		fmt.Fprintf(s.writer, "  [%d] %s\n", i+1, m)
	}
	fmt.Fprintf(s.writer, "Select (e.g. 1,3-4) [all]: ")

	reader := bufio.NewReader(s.reader)
	input, err := reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || input == "") {
		if errors.Is(err, io.EOF) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "reading selection")
	}

	return ParseSelection(input, len(mounts))
}

// ParseSelection parses a comma-separated list of 1-indexed numbers and
// inclusive ranges ("1,3-5") into 0-indexed positions. Blank input and "all"
// select every item.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var idx []int
	for field := range strings.SplitSeq(input, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(field, "-")
		first, err := parseIndex(lo, n)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parseIndex(hi, n); err != nil {
				return nil, err
			}
			if last < first {
				return nil, errors.Wrapf(ErrInvalidSelection, "range %q is reversed", field)
			}
		}
		for i := first; i <= last; i++ {
			idx = append(idx, i)
		}
	}

	if len(idx) == 0 {
		return nil, errors.Wrapf(ErrInvalidSelection, "%q selects nothing", input)
	}
	return idx, nil
}

func parseIndex(s string, n int) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidSelection, "%q is not a number", s)
	}
	if v < 1 || v > n {
		return 0, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", v, n)
	}
	return v - 1, nil
}

// SelectMountsDefault is a convenience function that uses stdin/stdout.
func SelectMountsDefault(ctx context.Context, mounts []string) ([]string, error) {
	return NewSelector().SelectMounts(ctx, mounts)
}
