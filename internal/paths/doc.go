// Package paths resolves the locations snapback reads its own files from.
//
// The package wraps github.com/adrg/xdg so the configuration directory follows
// the XDG Base Directory conventions on Linux and the platform equivalents
// elsewhere:
//
//	paths.ConfigDir()  // ~/.config/snapback
//	paths.ConfigFile() // ~/.config/snapback/config.yaml
//
// Snapshot destinations are never derived here; they always come from flags
// or the configuration file.
package paths
