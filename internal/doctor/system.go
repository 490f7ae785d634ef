package doctor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/rsync"
	"github.com/thoreinstein/snapback/internal/validator"
)

// RsyncCheck verifies the rsync binary resolves on PATH and runs.
type RsyncCheck struct {
	binary   string
	lookPath func(string) (string, error)
	version  func(ctx context.Context, binary string) (string, error)
}

var _ Check = (*RsyncCheck)(nil)

// NewRsyncCheck creates a check for the configured rsync binary.
func NewRsyncCheck(binary string) *RsyncCheck {
	return &RsyncCheck{
		binary:   binary,
		lookPath: exec.LookPath,
		version: func(ctx context.Context, binary string) (string, error) {
			return rsync.New(rsync.WithBinary(binary)).Version(ctx)
		},
	}
}

// Name returns the unique identifier for this check.
func (c *RsyncCheck) Name() string {
	return "rsync"
}

// Category returns the grouping for this check.
func (c *RsyncCheck) Category() string {
	return "dependencies"
}

// Run resolves the binary and asks it for its version.
func (c *RsyncCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"binary": c.binary},
	}

	path, err := c.lookPath(c.binary)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s not found", c.binary)
		result.FixHint = "install rsync or set rsync.binary in the config file"
		return result
	}
	result.Details["path"] = path

	version, err := c.version(ctx, path)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s does not run: %v", path, err)
		return result
	}

	result.Status = SeverityPass
	result.Message = version
	return result
}

// PrivilegeCheck reports whether system backups can run as the current user.
type PrivilegeCheck struct {
	euid int
}

var _ Check = (*PrivilegeCheck)(nil)

// NewPrivilegeCheck creates a check for the given effective user ID.
func NewPrivilegeCheck(euid int) *PrivilegeCheck {
	return &PrivilegeCheck{euid: euid}
}

// Name returns the unique identifier for this check.
func (c *PrivilegeCheck) Name() string {
	return "privilege"
}

// Category returns the grouping for this check.
func (c *PrivilegeCheck) Category() string {
	return "system"
}

// Run compares the effective user ID against root.
func (c *PrivilegeCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"euid": c.euid},
	}

	if err := validator.Privileged(c.euid); err != nil {
		result.Status = SeverityWarning
		result.Message = "not running as root, system backups will be refused"
		result.FixHint = "sudo snapback system"
		return result
	}

	result.Status = SeverityPass
	result.Message = "running as root"
	return result
}

// MountCheck runs the mount probe system backups would use.
type MountCheck struct {
	probe mounts.Probe
}

var _ Check = (*MountCheck)(nil)

// NewMountCheck creates a check around probe.
func NewMountCheck(probe mounts.Probe) *MountCheck {
	return &MountCheck{probe: probe}
}

// Name returns the unique identifier for this check.
func (c *MountCheck) Name() string {
	return "mounts"
}

// Category returns the grouping for this check.
func (c *MountCheck) Category() string {
	return "system"
}

// Run lists the mount points that survive filtering.
func (c *MountCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	points, err := c.probe.Mounts(ctx)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("reading mount table: %v", err)
		result.FixHint = "set probe.backend to df or partitions"
		return result
	}

	result.Details = map[string]any{"mounts": points}
	if len(points) == 0 {
		result.Status = SeverityWarning
		result.Message = "no mount points eligible for a system backup"
		result.FixHint = "review probe.skip_prefixes"
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d mount point(s) eligible for a system backup", len(points))
	return result
}

// usageWarnPercent is the fill level above which the destination is flagged.
const usageWarnPercent = 90.0

// DestinationCheck verifies the configured destination is usable and
// reports its free space.
type DestinationCheck struct {
	path  string
	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

var _ Check = (*DestinationCheck)(nil)

// NewDestinationCheck creates a check for the destination directory.
func NewDestinationCheck(path string) *DestinationCheck {
	return &DestinationCheck{
		path:  path,
		usage: disk.UsageWithContext,
	}
}

// Name returns the unique identifier for this check.
func (c *DestinationCheck) Name() string {
	return "destination"
}

// Category returns the grouping for this check.
func (c *DestinationCheck) Category() string {
	return "filesystem"
}

// Run validates the destination and reads its filesystem usage.
func (c *DestinationCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"path": c.path},
	}

	if c.path == "" {
		result.Status = SeverityInfo
		result.Message = "no destination configured"
		result.FixHint = "pass --dest or set destination in the config file"
		return result
	}

	if err := validator.Destination(c.path); err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		return result
	}

	usage, err := c.usage(ctx, c.path)
	if err != nil {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("cannot read free space: %v", err)
		return result
	}

	result.Details["fstype"] = usage.Fstype
	result.Details["free_bytes"] = usage.Free
	result.Details["total_bytes"] = usage.Total
	result.Details["used_percent"] = usage.UsedPercent

	if usage.UsedPercent >= usageWarnPercent {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("destination is %.0f%% full, %s free", usage.UsedPercent, formatBytes(usage.Free))
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("destination is writable, %s free", formatBytes(usage.Free))
	return result
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
