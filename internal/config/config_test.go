package config

import (
	"os"
	"path/filepath"
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

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
bindAddr: "0.0.0.0:9527"
serverName: "home-relay"
multiUserPath: true
users:
  - name: alice
    password: "482913"
    maxSnapshotNum: 5
    addMusicLocation: bottom
  - name: bob
    password: "777777"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9527", cfg.BindAddr)
	assert.Equal(t, "home-relay", cfg.ServerName)
	assert.True(t, cfg.MultiUserPath)
	require.Len(t, cfg.Users, 2)

	alice, ok := cfg.User("alice")
	require.True(t, ok)
	assert.Equal(t, 5, alice.MaxSnapshotNum)
	assert.Equal(t, AddMusicLocationBottom, alice.AddMusicLocation)

	// Дефолты для bob
	bob, ok := cfg.User("bob")
	require.True(t, ok)
	assert.Equal(t, DefaultMaxSnapshotNum, bob.MaxSnapshotNum)
	assert.Equal(t, AddMusicLocationTop, bob.AddMusicLocation)

	_, ok = cfg.User("nobody")
	assert.False(t, ok)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
users:
  - name: alice
    password: "482913"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultBindAddr, cfg.BindAddr)
	assert.Equal(t, "listsync", cfg.ServerName)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "no users",
			content: `bindAddr: ":9527"`,
			errMsg:  "at least one user",
		},
		{
			name: "empty password",
			content: `
users:
  - name: alice
    password: ""
`,
			errMsg: "connection code cannot be empty",
		},
		{
			name: "short password",
			content: `
users:
  - name: alice
    password: "123"
`,
			errMsg: "at least 6 characters",
		},
		{
			name: "bad account name",
			content: `
users:
  - name: "alice/.."
    password: "482913"
`,
			errMsg: "invalid user name",
		},
		{
			name: "duplicate name",
			content: `
users:
  - name: alice
    password: "482913"
  - name: alice
    password: "777777"
`,
			errMsg: "duplicate user name",
		},
		{
			name: "bad add location",
			content: `
users:
  - name: alice
    password: "482913"
    addMusicLocation: middle
`,
			errMsg: "addMusicLocation",
		},
		{
			name:    "invalid yaml",
			content: "users: [::",
			errMsg:  "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
