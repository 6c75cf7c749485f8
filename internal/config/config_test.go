package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Bot.Prefix)
	assert.Equal(t, 40, cfg.Teams.Capacity)
	assert.True(t, cfg.Teams.RestrictMainTeam)
	assert.Equal(t, 365, cfg.Teams.MaxBanDays)
	assert.Equal(t, "20:00 UTC Sunday", cfg.Teams.DefaultTimes["main_team"])
	assert.Equal(t, int(time.Tuesday), cfg.Scheduler.PostDay)
	assert.Equal(t, 23, cfg.Scheduler.LockHour)
	assert.Equal(t, 10, cfg.Limits.CommandsPerMinute)
	assert.Equal(t, 5, cfg.Limits.ButtonsPerMinute)
	assert.False(t, cfg.SheetsEnabled())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bot:
  token: "abc"
  prefix: "?"
teams:
  capacity: 25
discord:
  admin_role_ids: ["r1", "r2"]
  main_team_role_id: "marker"
sheets:
  credentials_file: "creds.json"
  spreadsheet_id: "sheet-1"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Bot.Token)
	assert.Equal(t, "?", cfg.Bot.Prefix)
	assert.Equal(t, 25, cfg.Teams.Capacity)
	assert.True(t, cfg.SheetsEnabled())
}

func TestConfig_IsAdmin(t *testing.T) {
	cfg := &Config{Discord: DiscordConfig{AdminRoleIDs: []string{"r1", "r2"}}}

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"has admin role", []string{"x", "r2"}, true},
		{"no admin role", []string{"x", "y"}, false},
		{"no roles", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.IsAdmin(tt.roles))
		})
	}
}

func TestConfig_HasMainTeamRole(t *testing.T) {
	cfg := &Config{
		Discord: DiscordConfig{MainTeamRoleID: "marker"},
		Teams:   TeamsConfig{RestrictMainTeam: true},
	}

	assert.True(t, cfg.HasMainTeamRole([]string{"a", "marker"}))
	assert.False(t, cfg.HasMainTeamRole([]string{"a"}))

	// An unrestricted main team accepts everyone.
	cfg.Teams.RestrictMainTeam = false
	assert.True(t, cfg.HasMainTeamRole(nil))
}
