package mounts

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/thoreinstein/snapback/internal/errors"
)

// Backend names accepted by New.
const (
	BackendPartitions = "partitions"
	BackendTable      = "df"
)

// ErrMountTable indicates the mount table could not be read.
var ErrMountTable = errors.New("reading mount table")

// DefaultSkipPrefixes are the mount-point prefixes treated as removable
// media or shares.
var DefaultSkipPrefixes = []string{"/media", "/mnt", "/run/media", "/Volumes"}

// virtualTypes are filesystems that live in memory or are synthesized by the kernel.
var virtualTypes = map[string]bool{
	"autofs": true, "binfmt_misc": true, "bpf": true, "cgroup": true,
	"cgroup2": true, "configfs": true, "debugfs": true, "devpts": true,
	"devtmpfs": true, "efivarfs": true, "fusectl": true, "hugetlbfs": true,
	"mqueue": true, "nsfs": true, "overlay": true, "proc": true,
	"pstore": true, "ramfs": true, "rpc_pipefs": true, "securityfs": true,
	"selinuxfs": true, "squashfs": true, "sysfs": true, "tmpfs": true,
	"tracefs": true, "devfs": true, "fuse.gvfsd-fuse": true, "fuse.portal": true,
	"nullfs": true,
}

// networkTypes are filesystems backed by a remote server.
var networkTypes = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smbfs": true, "smb3": true,
	"afpfs": true, "9p": true, "fuse.sshfs": true, "sshfs": true,
	"ceph": true, "glusterfs": true, "fuse.glusterfs": true,
}

// Mount is one entry of the mount table.
type Mount struct {
	Device string
	Path   string
	FSType string
}

// Probe enumerates the mount points eligible as snapshot sources.
type Probe interface {
	Mounts(ctx context.Context) ([]string, error)
}

// Filter selects the real, local, non-removable mounts from a mount table.
type Filter struct {
	// SkipPrefixes drops mount points equal to or nested below any prefix.
	SkipPrefixes []string
}

// Skip reports whether m should be left out of a snapshot, and why.
func (f Filter) Skip(m Mount) (bool, string) {
	fsType := strings.ToLower(m.FSType)
	switch {
	case virtualTypes[fsType]:
		return true, "virtual filesystem " + fsType
	case networkTypes[fsType]:
		return true, "network filesystem " + fsType
	}

	path := filepath.Clean(m.Path)
	for _, prefix := range f.SkipPrefixes {
		prefix = filepath.Clean(prefix)
		if prefix == "/" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true, "under " + prefix
		}
	}
	return false, ""
}

// Apply returns the mount points that pass the filter in table order with
// duplicates removed.
func (f Filter) Apply(table []Mount) []string {
	seen := make(map[string]bool, len(table))
	var out []string
	for _, m := range table {
		if m.Path == "" {
			continue
		}
		if skip, _ := f.Skip(m); skip {
			continue
		}
		path := filepath.Clean(m.Path)
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// New returns the probe for backend. An empty backend selects
// BackendPartitions.
func New(backend string, skipPrefixes []string) (Probe, error) {
	filter := Filter{SkipPrefixes: skipPrefixes}
	switch backend {
	case "", BackendPartitions:
		return NewPartitionProbe(filter), nil
	case BackendTable:
		return NewTableProbe(filter), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown probe backend %q", backend)
	}
}
