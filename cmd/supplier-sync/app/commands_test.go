package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "tick", "migrate", "version"})
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "supplier-sync "))
}

func TestTickCmd_EmptyCatalog(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
supplier:
  apiKey: test-key
storage:
  type: memory
`)
	_, err := execute(t, "", "tick", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no items")
}

func TestMigrateCmd(t *testing.T) {
	t.Parallel()

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("secret"), 0o600))
	withDatabase := `
storage:
  type: database
database:
  host: localhost
  port: 5432
  user: sync
  database: inventory
  passwordFile: ` + passwordFile + "\n"

	tests := []struct {
		name    string
		config  string
		args    []string
		stdin   string
		wantErr string
	}{
		{
			name:    "missing database section",
			config:  "storage:\n  type: memory\n",
			args:    []string{"migrate", "up", "--yes"},
			wantErr: "database configuration is required",
		},
		{
			name:    "declined up",
			config:  withDatabase,
			args:    []string{"migrate", "up"},
			stdin:   "no\n",
			wantErr: "cancelled",
		},
		{
			name:    "declined down",
			config:  withDatabase,
			args:    []string{"migrate", "down", "-n", "1"},
			stdin:   "n\n",
			wantErr: "cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := append(tt.args, "--config", writeConfig(t, tt.config))
			_, err := execute(t, tt.stdin, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
