// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Teams     TeamsConfig     `mapstructure:"teams"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

// BotConfig holds the Discord bot token and data directory.
type BotConfig struct {
	Token   string `mapstructure:"token"`
	Prefix  string `mapstructure:"prefix"`
	DataDir string `mapstructure:"data_dir"`
}

// DiscordConfig holds server-specific role and channel IDs.
type DiscordConfig struct {
	AdminRoleIDs       []string `mapstructure:"admin_role_ids"`
	MainTeamRoleID     string   `mapstructure:"main_team_role_id"`
	NotificationRoleID string   `mapstructure:"notification_role_id"`
	AlertChannelID     string   `mapstructure:"alert_channel_id"`
}

// TeamsConfig holds roster capacity and default event times per team.
type TeamsConfig struct {
	Capacity         int               `mapstructure:"capacity"`
	RestrictMainTeam bool              `mapstructure:"restrict_main_team"`
	DefaultTimes     map[string]string `mapstructure:"default_times"`
	MaxBanDays       int               `mapstructure:"max_ban_days"`
}

// SheetsConfig holds the Google Sheets mirror configuration.
// An empty credentials path disables the mirror entirely.
type SheetsConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	CallsPerMinute  int           `mapstructure:"calls_per_minute"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
}

// SchedulerConfig holds the weekly event cadence, all in UTC.
type SchedulerConfig struct {
	PostDay     int             `mapstructure:"post_day"`
	PostHour    int             `mapstructure:"post_hour"`
	LockDay     int             `mapstructure:"lock_day"`
	LockHour    int             `mapstructure:"lock_hour"`
	SummaryDay  int             `mapstructure:"summary_day"`
	SummaryHour int             `mapstructure:"summary_hour"`
	Tick        time.Duration   `mapstructure:"tick"`
	Reminders   []time.Duration `mapstructure:"reminders"`
}

// DashboardConfig holds the read-only HTTP dashboard settings.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LimitsConfig holds per-user command throttling at the chat boundary.
type LimitsConfig struct {
	CommandsPerMinute int `mapstructure:"commands_per_minute"`
	ButtonsPerMinute  int `mapstructure:"buttons_per_minute"`
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, SHEETS_SPREADSHEET_ID.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.prefix", "!")
	v.SetDefault("bot.data_dir", "data")

	v.SetDefault("teams.capacity", 40)
	v.SetDefault("teams.restrict_main_team", true)
	v.SetDefault("teams.max_ban_days", 365)
	v.SetDefault("teams.default_times", map[string]string{
		"main_team": "20:00 UTC Sunday",
		"team_2":    "20:00 UTC Saturday",
		"team_3":    "14:00 UTC Sunday",
	})

	v.SetDefault("sheets.calls_per_minute", 50)
	v.SetDefault("sheets.max_wait", "20s")

	v.SetDefault("scheduler.post_day", int(time.Tuesday))
	v.SetDefault("scheduler.post_hour", 10)
	v.SetDefault("scheduler.lock_day", int(time.Thursday))
	v.SetDefault("scheduler.lock_hour", 23)
	v.SetDefault("scheduler.summary_day", int(time.Sunday))
	v.SetDefault("scheduler.summary_hour", 23)
	v.SetDefault("scheduler.tick", "1m")
	v.SetDefault("scheduler.reminders", []string{"24h", "1h"})

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.listen", ":8080")

	v.SetDefault("limits.commands_per_minute", 10)
	v.SetDefault("limits.buttons_per_minute", 5)
}

// IsAdmin checks whether any of the member's roles is an admin role.
func (c *Config) IsAdmin(roleIDs []string) bool {
	for _, have := range roleIDs {
		for _, want := range c.Discord.AdminRoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasMainTeamRole checks whether the member carries the competitive
// marker role required for the main team.
func (c *Config) HasMainTeamRole(roleIDs []string) bool {
	if !c.Teams.RestrictMainTeam {
		return true
	}
	for _, id := range roleIDs {
		if id == c.Discord.MainTeamRoleID {
			return true
		}
	}
	return false
}

// SheetsEnabled reports whether the Sheets mirror is configured at all.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsFile != "" && c.Sheets.SpreadsheetID != ""
}
