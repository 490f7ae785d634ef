package doctor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/snapback/internal/config"
	"github.com/thoreinstein/snapback/internal/paths"
)

// ConfigPermissionCheck reports a config directory or file that other users
// can write to.
type ConfigPermissionCheck struct {
	PermissionFixer

	dir  string
	file string
}

var (
	_ Check = (*ConfigPermissionCheck)(nil)
	_ Fixer = (*ConfigPermissionCheck)(nil)
)

// NewConfigPermissionCheck creates a permission check for the config
// directory and the config file in use. Either may be empty.
func NewConfigPermissionCheck(dir, file string) *ConfigPermissionCheck {
	return &ConfigPermissionCheck{dir: dir, file: file}
}

// Name returns the unique identifier for this check.
func (c *ConfigPermissionCheck) Name() string {
	return "config-permissions"
}

// Category returns the grouping for this check.
func (c *ConfigPermissionCheck) Category() string {
	return "filesystem"
}

// Run executes the path and permission diagnostic check.
func (c *ConfigPermissionCheck) Run(_ context.Context) *CheckResult {
	var issues []pathIssue
	var checked int

	if c.dir != "" {
		issues = append(issues, c.checkPath(c.dir, "directory")...)
		checked++
	}
	if c.file != "" {
		issues = append(issues, c.checkPath(c.file, "file")...)
		checked++
	}

	c.setIssues(issues)
	return c.buildResult(issues, checked)
}

// pathIssue represents a single path or permission problem.
type pathIssue struct {
	Path        string
	Type        string // "file" or "directory"
	Problem     string
	Severity    Severity
	Permissions string
	Fixable     bool
	FixHint     string
}

func (c *ConfigPermissionCheck) checkPath(path, kind string) []pathIssue {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		// Nothing configured yet
		return nil
	}
	if err != nil {
		return []pathIssue{{
			Path:     path,
			Type:     kind,
			Problem:  fmt.Sprintf("cannot stat %s: %v", kind, err),
			Severity: SeverityError,
		}}
	}

	if (kind == "directory") != info.IsDir() {
		return []pathIssue{{
			Path:     path,
			Type:     kind,
			Problem:  fmt.Sprintf("expected %s but found %s", kind, describeMode(info.Mode())),
			Severity: SeverityError,
		}}
	}

	if info.Mode().Perm()&0o022 == 0 {
		return nil
	}

	target := secureFilePerm
	if kind == "directory" {
		target = secureDirPerm
	}
	return []pathIssue{{
		Path:        path,
		Type:        kind,
		Problem:     kind + " is writable by other users",
		Severity:    SeverityWarning,
		Permissions: formatPermissions(info.Mode()),
		Fixable:     true,
		FixHint:     fmt.Sprintf("chmod %04o %s", target, path),
	}}
}

// buildResult constructs the final CheckResult from accumulated issues.
func (c *ConfigPermissionCheck) buildResult(issues []pathIssue, checked int) *CheckResult {
	if len(issues) == 0 {
		return &CheckResult{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   SeverityPass,
			Message:  fmt.Sprintf("all %d paths have valid permissions", checked),
		}
	}

	status := SeverityWarning
	issueDetails := make([]map[string]any, 0, len(issues))
	var fixHints []string
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			status = SeverityError
		}
		issueMap := map[string]any{
			"path":     issue.Path,
			"type":     issue.Type,
			"problem":  issue.Problem,
			"severity": issue.Severity.String(),
		}
		if issue.Permissions != "" {
			issueMap["permissions"] = issue.Permissions
		}
		issueDetails = append(issueDetails, issueMap)
		if issue.Fixable && issue.FixHint != "" {
			fixHints = append(fixHints, issue.FixHint)
		}
	}

	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   status,
		Message:  fmt.Sprintf("found %d permission issue(s) across %d paths", len(issues), checked),
		Details: map[string]any{
			"checked_paths": checked,
			"issue_count":   len(issues),
			"issues":        issueDetails,
		},
		Fixable: c.CanFix(),
		FixHint: strings.Join(fixHints, "; "),
	}
}

// formatPermissions returns a human-readable permission string (e.g., "0644").
func formatPermissions(mode os.FileMode) string {
	return fmt.Sprintf("%04o", mode.Perm())
}

func describeMode(mode os.FileMode) string {
	switch {
	case mode.IsDir():
		return "directory"
	case mode.IsRegular():
		return "file"
	default:
		return mode.Type().String()
	}
}

// ConfigCheck parses the config file and validates its values.
type ConfigCheck struct {
	path string
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck creates a check for the config file at path. An empty path
// means no file is in use and the defaults apply.
func NewConfigCheck(path string) *ConfigCheck {
	return &ConfigCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *ConfigCheck) Name() string {
	return "config"
}

// Category returns the grouping for this check.
func (c *ConfigCheck) Category() string {
	return "config"
}

// Run executes the syntax and value checks.
func (c *ConfigCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   SeverityPass,
		Details:  map[string]any{"path": c.path},
	}

	if c.path == "" {
		result.Status = SeverityInfo
		result.Message = "no config file found, using defaults"
		result.FixHint = "snapback config init"
		return result
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		result.Status = SeverityError
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.Message = "config file does not exist"
			result.FixHint = "snapback config init"
		case errors.Is(err, os.ErrPermission):
			result.Message = fmt.Sprintf("permission denied: %v", err)
		default:
			result.Message = fmt.Sprintf("read error: %v", err)
		}
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Message = "config file is empty, using defaults"
		return result
	}

	cfg := config.Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		result.Status = SeverityError
		result.Message = formatYAMLError(err)
		result.FixHint = "snapback config edit"
		return result
	}

	if expanded, err := paths.ExpandHome(cfg.Destination); err == nil {
		cfg.Destination = expanded
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d invalid value(s)", len(errs))
		result.Details["errors"] = msgs
		result.FixHint = "snapback config edit"
		return result
	}

	if unknown := unknownKeys(data); len(unknown) > 0 {
		result.Status = SeverityWarning
		result.Message = "unrecognized keys: " + strings.Join(unknown, ", ")
		result.Details["unknown_keys"] = unknown
		return result
	}

	result.Message = "config file is valid"
	return result
}

// unknownKeys returns the error lines a strict decode reports for keys that
// do not map onto Config.
func unknownKeys(data []byte) []string {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg config.Config
	err := dec.Decode(&cfg)

	var typeErr *yaml.TypeError
	if !errors.As(err, &typeErr) {
		return nil
	}

	var keys []string
	for _, msg := range typeErr.Errors {
		if strings.Contains(msg, "not found in type") {
			keys = append(keys, strings.TrimSpace(msg))
		}
	}
	return keys
}

// formatYAMLError strips the library prefix from a decode error.
func formatYAMLError(err error) string {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	return "YAML error: " + msg
}
