// Package mounts discovers the mounted filesystems a full-system snapshot
// should copy.
//
// Two backends read the live mount table: [PartitionProbe] asks gopsutil,
// and [TableProbe] parses the output of df. Both pass their entries through
// the same [Filter], which drops in-memory and kernel filesystems, network
// shares, and anything mounted under a removable-media prefix such as
// /media or /mnt.
package mounts
