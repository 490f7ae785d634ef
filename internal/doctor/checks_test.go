package doctor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
}

func TestConfigPermissionCheck_Metadata(t *testing.T) {
	c := NewConfigPermissionCheck("", "")
	if c.Name() != "config-permissions" {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.Category() != "filesystem" {
		t.Errorf("Category() = %q", c.Category())
	}
}

func TestConfigPermissionCheck_Run(t *testing.T) {
	t.Run("missing paths pass", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "absent")
		c := NewConfigPermissionCheck(dir, filepath.Join(dir, "config.yaml"))

		result := c.Run(context.Background())
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
		if c.CanFix() {
			t.Error("CanFix() = true with no issues")
		}
	})

	t.Run("private paths pass", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Chmod(dir, 0o700); err != nil {
			t.Fatal(err)
		}
		file := filepath.Join(dir, "config.yaml")
		writeFile(t, file, "destination: /backup\n", 0o600)

		result := NewConfigPermissionCheck(dir, file).Run(context.Background())
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
		if !strings.Contains(result.Message, "all 2 paths") {
			t.Errorf("Message = %q", result.Message)
		}
	})

	t.Run("writable by others warns and is fixable", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Chmod(dir, 0o777); err != nil {
			t.Fatal(err)
		}
		file := filepath.Join(dir, "config.yaml")
		writeFile(t, file, "destination: /backup\n", 0o664)

		c := NewConfigPermissionCheck(dir, file)
		result := c.Run(context.Background())
		if result.Status != SeverityWarning {
			t.Fatalf("Status = %v, want warning", result.Status)
		}
		if !result.Fixable || !c.CanFix() {
			t.Error("expected fixable result")
		}
		if result.Details["issue_count"] != 2 {
			t.Errorf("issue_count = %v, want 2", result.Details["issue_count"])
		}
		if !strings.Contains(result.FixHint, "chmod 0600 "+file) {
			t.Errorf("FixHint = %q", result.FixHint)
		}
	})

	t.Run("file where directory expected", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, file, "", 0o600)

		result := NewConfigPermissionCheck(file, "").Run(context.Background())
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
	})
}

func TestConfigCheck_Run(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantStatus  Severity
		wantMessage string
	}{
		{
			name:        "valid",
			content:     "destination: /backup\nexcludes:\n  - '*.iso'\nprobe:\n  backend: df\n",
			wantStatus:  SeverityPass,
			wantMessage: "config file is valid",
		},
		{
			name:        "empty",
			content:     "\n",
			wantStatus:  SeverityPass,
			wantMessage: "empty",
		},
		{
			name:        "syntax error",
			content:     "destination: [\n",
			wantStatus:  SeverityError,
			wantMessage: "YAML error",
		},
		{
			name:        "invalid values",
			content:     "destination: relative\nfile:\n  suffix: zip\n",
			wantStatus:  SeverityError,
			wantMessage: "2 invalid value(s)",
		},
		{
			name:        "forbidden rsync argument",
			content:     "rsync:\n  extra_args: [--delete]\n",
			wantStatus:  SeverityError,
			wantMessage: "1 invalid value(s)",
		},
		{
			name:        "unknown key",
			content:     "destination: /backup\nretention: 7\n",
			wantStatus:  SeverityWarning,
			wantMessage: "unrecognized keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.content, 0o600)

			result := NewConfigCheck(path).Run(context.Background())
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v (%s)", result.Status, tt.wantStatus, result.Message)
			}
			if !strings.Contains(result.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", result.Message, tt.wantMessage)
			}
		})
	}
}

func TestConfigCheck_NoFile(t *testing.T) {
	result := NewConfigCheck("").Run(context.Background())
	if result.Status != SeverityInfo {
		t.Errorf("Status = %v, want info", result.Status)
	}

	result = NewConfigCheck(filepath.Join(t.TempDir(), "missing.yaml")).Run(context.Background())
	if result.Status != SeverityError {
		t.Errorf("Status = %v, want error for a missing explicit file", result.Status)
	}
	if result.FixHint != "snapback config init" {
		t.Errorf("FixHint = %q", result.FixHint)
	}
}

func TestFormatPermissions(t *testing.T) {
	if got := formatPermissions(0o640); got != "0640" {
		t.Errorf("formatPermissions(0640) = %q", got)
	}
	if got := formatPermissions(os.ModeDir | 0o755); got != "0755" {
		t.Errorf("formatPermissions(dir 0755) = %q", got)
	}
}
