// Package model defines the data models for the RoW event bot.
package model

import (
	"strings"
	"time"
)

// Team identifies one of the three weekly event rosters.
type Team string

// The three teams fielded every cycle. MainTeam requires the competitive
// marker role; the other two are open to everyone.
const (
	TeamMain Team = "main_team"
	Team2    Team = "team_2"
	Team3    Team = "team_3"
)

// Teams returns all teams in display order.
func Teams() []Team {
	return []Team{TeamMain, Team2, Team3}
}

// teamAliases maps user-typed team names to canonical team keys.
var teamAliases = map[string]Team{
	"main":      TeamMain,
	"main_team": TeamMain,
	"team1":     TeamMain,
	"team_1":    TeamMain,
	"1":         TeamMain,
	"team2":     Team2,
	"team_2":    Team2,
	"2":         Team2,
	"team3":     Team3,
	"team_3":    Team3,
	"3":         Team3,
}

// ParseTeam resolves a user-typed team name to a canonical team.
// Returns false if the name does not match any team.
func ParseTeam(s string) (Team, bool) {
	team, ok := teamAliases[strings.ToLower(strings.TrimSpace(s))]
	return team, ok
}

// DisplayName returns the decorated team name used in messages and sheets.
func (t Team) DisplayName() string {
	switch t {
	case TeamMain:
		return "🏆 Main Team"
	case Team2:
		return "🔸 Team 2"
	case Team3:
		return "🔸 Team 3"
	default:
		return string(t)
	}
}

// CycleState is the lifecycle state of an event cycle.
// Transitions are linear: OPEN → LOCKED → RESULTED → ARCHIVED.
type CycleState string

const (
	StateOpen     CycleState = "OPEN"
	StateLocked   CycleState = "LOCKED"
	StateResulted CycleState = "RESULTED"
	StateArchived CycleState = "ARCHIVED"
)

// Cycle is one recurring instance of the weekly event: three rosters,
// a lifecycle state and the scheduled time per team. Roster slices keep
// user IDs in join order.
type Cycle struct {
	ID        string            `json:"id"`
	State     CycleState        `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	Rosters   map[Team][]string `json:"rosters"`
	Times     map[Team]string   `json:"times"`
}

// NewRosters returns an empty roster set covering every team.
func NewRosters() map[Team][]string {
	return map[Team][]string{TeamMain: {}, Team2: {}, Team3: {}}
}

// Member reports whether the user is on the given team.
func (c Cycle) Member(team Team, userID string) bool {
	for _, id := range c.Rosters[team] {
		if id == userID {
			return true
		}
	}
	return false
}

// TeamOf returns the team the user is currently signed up for, if any.
func (c Cycle) TeamOf(userID string) (Team, bool) {
	for _, team := range Teams() {
		if c.Member(team, userID) {
			return team, true
		}
	}
	return "", false
}

// Outcome is the result of one team's match in a cycle.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// ParseOutcome resolves a user-typed outcome. Returns false if unknown.
func ParseOutcome(s string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w":
		return OutcomeWin, true
	case "loss", "lose", "l":
		return OutcomeLoss, true
	case "draw", "d", "tie":
		return OutcomeDraw, true
	default:
		return "", false
	}
}

// ResultEntry is one record in the append-only match result log.
// A regular entry records an outcome for (cycle, team). A tombstone entry
// has Retracts set to the ID of the entry it cancels; tombstoned entries
// are skipped when statistics are folded.
type ResultEntry struct {
	ID            string    `json:"id"`
	CycleID       string    `json:"cycle_id"`
	Team          Team      `json:"team"`
	Outcome       Outcome   `json:"outcome,omitempty"`
	RecordedBy    string    `json:"recorded_by"`
	RecordedAt    time.Time `json:"recorded_at"`
	EnemyAlliance string    `json:"enemy_alliance,omitempty"`
	Retracts      string    `json:"retracts,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// IsTombstone reports whether the entry cancels an earlier one.
func (r ResultEntry) IsTombstone() bool {
	return r.Retracts != ""
}

// ArchivedCycle is an immutable history record: the cycle as it stood at
// archive time plus every result entry recorded for it.
type ArchivedCycle struct {
	Cycle      Cycle         `json:"cycle"`
	Results    []ResultEntry `json:"results"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// Record is the per-team win/loss/draw tally for one player or one team.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// Total returns the number of counted matches.
func (r Record) Total() int {
	return r.Wins + r.Losses + r.Draws
}

// PlayerStats is the derived per-player aggregate. It is a projection of
// the archived history and live result log and can always be recomputed
// from them.
type PlayerStats struct {
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	TeamRecords map[Team]Record `json:"team_records"`
	Absents     int             `json:"absents"`
}

// Combined returns the player's record summed across all teams.
func (p PlayerStats) Combined() Record {
	var total Record
	for _, rec := range p.TeamRecords {
		total.Wins += rec.Wins
		total.Losses += rec.Losses
		total.Draws += rec.Draws
	}
	return total
}

// BlockEntry records an active signup block for one user.
type BlockEntry struct {
	BlockedBy    string    `json:"blocked_by"`
	BlockedAt    time.Time `json:"blocked_at"`
	DurationDays int       `json:"ban_duration_days"`
}

// Expired reports whether the block has run out at the given time.
func (b BlockEntry) Expired(now time.Time) bool {
	return !now.Before(b.BlockedAt.AddDate(0, 0, b.DurationDays))
}

// Profile is a player's self-declared identity and admin-curated rating.
// DisplayName is the platform display name captured on the user's last
// interaction; it is the render fallback when no IGN is set.
type Profile struct {
	IGN         string  `json:"ign,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	PowerRating float64 `json:"power_rating,omitempty"`
}

// Empty reports whether the profile carries no data worth keeping.
func (p Profile) Empty() bool {
	return p.IGN == "" && p.DisplayName == "" && p.PowerRating == 0
}

// NotificationPrefs holds one user's reminder delivery settings: which
// channels are enabled and an optional quiet-hours window ("HH:MM" UTC).
type NotificationPrefs struct {
	Channels   map[string]bool `json:"channels"`
	QuietStart string          `json:"quiet_start,omitempty"`
	QuietEnd   string          `json:"quiet_end,omitempty"`
}

// NotificationChannelDM and friends are the delivery channels a user can
// toggle individually.
const (
	NotificationChannelDM      = "dm"
	NotificationChannelMention = "mention"
)
