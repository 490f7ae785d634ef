// Package config loads snapback's configuration file.
//
// The file is YAML, found at $XDG_CONFIG_HOME/snapback/config.yaml or in the
// current directory, and every key may be overridden with a SNAPBACK_
// environment variable (dots become underscores):
//
//	destination: /backup
//	excludes:
//	  - "*.iso"
//	rsync:
//	  binary: rsync
//	  extra_args: ["--numeric-ids"]
//	probe:
//	  backend: partitions   # or df
//	  skip_prefixes: [/media, /mnt, /run/media, /Volumes]
//	file:
//	  suffix: timestamp     # or date, bak
//
// Command-line flags override values from the file. A missing file is not
// an error unless its path was given explicitly.
//
// # Validation
//
// [Load] runs [Validate] and fails with errors.ErrInvalidConfig when any
// field is wrong. Validate itself returns every problem it finds:
//
//	for _, e := range config.Validate(cfg) {
//		fmt.Println(e)
//	}
package config
