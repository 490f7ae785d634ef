package mounts

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/thoreinstein/snapback/internal/errors"
)

// PartitionProbe reads the mount table through gopsutil.
type PartitionProbe struct {
	Filter Filter

	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
}

// NewPartitionProbe returns a probe backed by disk.PartitionsWithContext.
func NewPartitionProbe(filter Filter) *PartitionProbe {
	return &PartitionProbe{
		Filter:     filter,
		partitions: disk.PartitionsWithContext,
	}
}

// Table returns every mount gopsutil reports, unfiltered.
func (p *PartitionProbe) Table(ctx context.Context) ([]Mount, error) {
	// all=true so nodev filesystems such as zfs are not dropped; the
	// Filter decides what is virtual.
	parts, err := p.partitions(ctx, true)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrMountTable), "listing partitions")
	}

	table := make([]Mount, 0, len(parts))
	for _, part := range parts {
		table = append(table, Mount{
			Device: part.Device,
			Path:   part.Mountpoint,
			FSType: part.Fstype,
		})
	}
	return table, nil
}

// Mounts returns the filtered mount points.
func (p *PartitionProbe) Mounts(ctx context.Context) ([]string, error) {
	table, err := p.Table(ctx)
	if err != nil {
		return nil, err
	}
	return p.Filter.Apply(table), nil
}
