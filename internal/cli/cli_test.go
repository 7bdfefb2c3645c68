package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// run executes the root command with args against a temp config file.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "whenitworks.yaml")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--config", cfgPath))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default,
// since tests share the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadCommand_PrintsText(t *testing.T) {
	content := "BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n"
	path := writeFile(t, "team.ics", content)

	stdout, stderr, err := run(t, "read", path)

	require.NoError(t, err)
	assert.Equal(t, content, stdout)
	assert.Empty(t, stderr)
}

func TestReadCommand_Trace(t *testing.T) {
	path := writeFile(t, "team.ics", "BEGIN:VCALENDAR")

	t.Run("traced", func(t *testing.T) {
		_, stderr, err := run(t, "read", "--trace", path)

		require.NoError(t, err)
		assert.Contains(t, stderr, "idle -> validating team.ics (15 Bytes)")
		assert.Contains(t, stderr, "validating -> reading")
		assert.Contains(t, stderr, "reading -> displayed 15 characters")
	})

	t.Run("next run without flag is quiet", func(t *testing.T) {
		stdout, stderr, err := run(t, "read", path)

		require.NoError(t, err)
		assert.Equal(t, "BEGIN:VCALENDAR", stdout)
		assert.Empty(t, stderr)
	})
}

func TestReadCommand_Failures(t *testing.T) {
	tests := []struct {
		name    string
		file    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "wrong extension",
			file:    func(t *testing.T) string { return writeFile(t, "notes.txt", "hello") },
			wantErr: "Invalid file type. Accepted types: .ics",
		},
		{
			name:    "missing file",
			file:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.ics") },
			wantErr: "nope.ics",
		},
		{
			name:    "directory",
			file:    func(t *testing.T) string { return t.TempDir() },
			wantErr: "directory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, "read", tt.file(t))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, stdout)
		})
	}
}

func TestReadCommand_TooLarge(t *testing.T) {
	path := writeFile(t, "big.ics", "0123456789")
	t.Setenv("WIW_MAX_FILE_SIZE", "4")

	_, _, err := run(t, "read", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "File is too large. Maximum size: 4 Bytes")
}

func TestReadCommand_RequiresOneArg(t *testing.T) {
	_, _, err := run(t, "read")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	stdout, _, err := run(t, "config")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Config file:")
	assert.Contains(t, stdout, "SETTING")
	assert.Contains(t, stdout, "accepted_file_types")
	assert.Contains(t, stdout, ".ics")
	assert.Contains(t, stdout, "10485760 (10 MB)")
	assert.Contains(t, stdout, "wiw_session")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "version")

	require.NoError(t, err)
	assert.Contains(t, stdout, "whenitworks 1.0.0")
}
