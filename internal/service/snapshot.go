package service

import (
	"sort"
	"time"

	"discord-row-bot/internal/model"
)

// Snapshot is a self-contained read-only view of the bot's state,
// assembled under the cycle guard and then handed to consumers that must
// not hold it: the sheets reconciler, the dashboard and the exporter.
type Snapshot struct {
	TakenAt time.Time

	CycleID  string
	State    model.CycleState
	Capacity int
	Rosters  map[model.Team][]string
	Times    map[model.Team]string

	// Names maps every user id appearing anywhere in the snapshot to the
	// display name to render (IGN when set).
	Names map[string]string

	Stats    []model.PlayerStats
	Results  []model.ResultEntry
	Totals   map[model.Team]model.Record
	Enemies  []EnemyRecord
	Profiles map[string]model.Profile
}

// EnemyRecord aggregates standing results against one enemy alliance.
type EnemyRecord struct {
	Alliance string
	Record   model.Record
	LastSeen time.Time
}

// SnapshotProvider assembles snapshots from the live services.
type SnapshotProvider struct {
	lifecycle *LifecycleService
	results   *ResultsService
	stats     *StatsService
	igns      *IGNService
	capacity  int
}

// NewSnapshotProvider wires the read-only aggregator.
func NewSnapshotProvider(
	lifecycle *LifecycleService,
	results *ResultsService,
	stats *StatsService,
	igns *IGNService,
	capacity int,
) *SnapshotProvider {
	return &SnapshotProvider{
		lifecycle: lifecycle,
		results:   results,
		stats:     stats,
		igns:      igns,
		capacity:  capacity,
	}
}

// Take captures the current state. Each section takes its own guard
// pass; a roster join racing the snapshot lands in this snapshot or the
// next, never in between.
func (p *SnapshotProvider) Take() Snapshot {
	cycle := p.lifecycle.Current()
	standing := p.results.Standing()
	stats := p.stats.All()
	profiles := p.igns.Profiles()

	snap := Snapshot{
		TakenAt:  time.Now().UTC(),
		CycleID:  cycle.ID,
		State:    cycle.State,
		Capacity: p.capacity,
		Rosters:  cycle.Rosters,
		Times:    cycle.Times,
		Names:    map[string]string{},
		Stats:    stats,
		Results:  standing,
		Totals:   p.stats.TeamTotals(),
		Profiles: profiles,
	}

	for _, roster := range cycle.Rosters {
		for _, userID := range roster {
			snap.Names[userID] = p.igns.ResolveDisplay(userID, userID)
		}
	}
	for _, s := range stats {
		snap.Names[s.UserID] = s.Name
	}

	snap.Enemies = p.enemyRecords(standing)
	return snap
}

// enemyRecords folds standing results (live plus archived) per enemy
// alliance name, most recently seen first.
func (p *SnapshotProvider) enemyRecords(live []model.ResultEntry) []EnemyRecord {
	byName := map[string]*EnemyRecord{}
	fold := func(entries []model.ResultEntry, retracted map[string]bool) {
		for _, e := range entries {
			if e.IsTombstone() || retracted[e.ID] || e.EnemyAlliance == "" {
				continue
			}
			rec, ok := byName[e.EnemyAlliance]
			if !ok {
				rec = &EnemyRecord{Alliance: e.EnemyAlliance}
				byName[e.EnemyAlliance] = rec
			}
			switch e.Outcome {
			case model.OutcomeWin:
				rec.Record.Wins++
			case model.OutcomeLoss:
				rec.Record.Losses++
			case model.OutcomeDraw:
				rec.Record.Draws++
			}
			if e.RecordedAt.After(rec.LastSeen) {
				rec.LastSeen = e.RecordedAt
			}
		}
	}

	history, err := p.lifecycle.History()
	if err == nil {
		for _, arch := range history {
			retracted := map[string]bool{}
			for _, e := range arch.Results {
				if e.IsTombstone() {
					retracted[e.Retracts] = true
				}
			}
			fold(arch.Results, retracted)
		}
	}
	fold(live, nil)

	out := make([]EnemyRecord, 0, len(byName))
	for _, rec := range byName {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].Alliance < out[j].Alliance
	})
	return out
}
