package service

import (
	"sort"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/repository"
)

// StatsService derives per-player and per-team win/loss statistics.
// The counters it maintains are a projection: they are updated
// incrementally as results are recorded and retracted, and rebuilt by a
// pure fold over the archived history plus the live result log whenever
// a cycle is archived. The fold and the incremental counters must always
// agree; recomputation is idempotent.
type StatsService struct {
	resultRepo  *repository.ResultRepository
	profileRepo *repository.ProfileRepository
	guard       *cyclelock.Guard
	lifecycle   *LifecycleService
	results     *ResultsService
	igns        *IGNService

	counters map[string]*model.PlayerStats
}

// NewStatsService creates the aggregator, wires it into the lifecycle and
// results services and builds the initial counters from the logs.
func NewStatsService(
	resultRepo *repository.ResultRepository,
	profileRepo *repository.ProfileRepository,
	guard *cyclelock.Guard,
	lifecycle *LifecycleService,
	results *ResultsService,
	igns *IGNService,
) (*StatsService, error) {
	s := &StatsService{
		resultRepo:  resultRepo,
		profileRepo: profileRepo,
		guard:       guard,
		lifecycle:   lifecycle,
		results:     results,
		igns:        igns,
	}
	lifecycle.SetStats(s)
	results.SetStats(s)

	var err error
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		err = s.rebuildLocked()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Aggregate returns the player's statistics. Unknown players get a zero
// record, never an error.
func (s *StatsService) Aggregate(userID string) model.PlayerStats {
	var out model.PlayerStats
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		if stats, ok := s.counters[userID]; ok {
			out = copyStats(stats)
		} else {
			out = emptyStats(userID)
		}
		return nil
	})
	out.Absents = s.absentCount(userID)
	out.Name = s.igns.ResolveDisplay(userID, userID)
	return out
}

// All returns statistics for every known player, sorted by total wins
// descending then user id for a stable order.
func (s *StatsService) All() []model.PlayerStats {
	var out []model.PlayerStats
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		for _, stats := range s.counters {
			out = append(out, copyStats(stats))
		}
		return nil
	})
	counts, err := s.rosterAbsentCounts()
	for i := range out {
		if err == nil {
			out[i].Absents = counts[out[i].UserID]
		}
		out[i].Name = s.igns.ResolveDisplay(out[i].UserID, out[i].UserID)
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].Combined().Wins, out[j].Combined().Wins
		if wi != wj {
			return wi > wj
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// TeamTotals folds the logs into one record per team.
func (s *StatsService) TeamTotals() map[model.Team]model.Record {
	totals := map[model.Team]model.Record{}
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		entries, err := s.standingEntriesLocked()
		if err != nil {
			return nil
		}
		for _, e := range entries {
			rec := totals[e.Team]
			switch e.Outcome {
			case model.OutcomeWin:
				rec.Wins++
			case model.OutcomeLoss:
				rec.Losses++
			case model.OutcomeDraw:
				rec.Draws++
			}
			totals[e.Team] = rec
		}
		return nil
	})
	return totals
}

// Recompute rebuilds the counters from the logs and returns the result.
// It is a pure function of the archived history and the live result log;
// calling it any number of times converges on the same answer.
func (s *StatsService) Recompute() (map[string]model.PlayerStats, error) {
	var err error
	out := map[string]model.PlayerStats{}
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		err = s.rebuildLocked()
		if err != nil {
			return nil
		}
		for id, stats := range s.counters {
			out[id] = copyStats(stats)
		}
		return nil
	})
	return out, err
}

// applyResultLocked folds one newly recorded result into the counters.
// Caller holds the cycle guard.
func (s *StatsService) applyResultLocked(roster []string, team model.Team, outcome model.Outcome) {
	for _, userID := range roster {
		s.bump(userID, team, outcome, 1)
	}
}

// unapplyResultLocked reverses a retracted result. The roster credited at
// record time is the live cycle's roster when the original entry belongs
// to the live cycle, or the archived roster otherwise.
func (s *StatsService) unapplyResultLocked(original model.ResultEntry) {
	roster := s.rosterForLocked(original)
	for _, userID := range roster {
		s.bump(userID, original.Team, original.Outcome, -1)
	}
}

// foldArchivedLocked refreshes the counters after a cycle moves into
// history. Entries were already counted when recorded, so this is a full
// idempotent rebuild rather than a second addition.
func (s *StatsService) foldArchivedLocked(model.ArchivedCycle) {
	s.rebuildLocked()
}

// rosterForLocked finds the roster an entry's team had in the entry's
// cycle. Caller holds the cycle guard.
func (s *StatsService) rosterForLocked(entry model.ResultEntry) []string {
	if s.lifecycle.cycle.ID == entry.CycleID {
		return s.lifecycle.cycle.Rosters[entry.Team]
	}
	history, err := s.resultRepo.LoadHistory()
	if err != nil {
		return nil
	}
	for _, arch := range history {
		if arch.Cycle.ID == entry.CycleID {
			return arch.Cycle.Rosters[entry.Team]
		}
	}
	return nil
}

// rebuildLocked recomputes every counter from the logs. Caller holds the
// cycle guard.
func (s *StatsService) rebuildLocked() error {
	entries, err := s.standingEntriesLocked()
	if err != nil {
		return err
	}
	history, err := s.resultRepo.LoadHistory()
	if err != nil {
		return err
	}

	rosters := map[string]map[model.Team][]string{
		s.lifecycle.cycle.ID: s.lifecycle.cycle.Rosters,
	}
	for _, arch := range history {
		rosters[arch.Cycle.ID] = arch.Cycle.Rosters
	}

	s.counters = map[string]*model.PlayerStats{}
	for _, e := range entries {
		cycleRosters, ok := rosters[e.CycleID]
		if !ok {
			continue
		}
		for _, userID := range cycleRosters[e.Team] {
			s.bump(userID, e.Team, e.Outcome, 1)
		}
	}
	return nil
}

// standingEntriesLocked collects every non-tombstoned, non-retracted
// entry across history and the live log. Caller holds the cycle guard.
func (s *StatsService) standingEntriesLocked() ([]model.ResultEntry, error) {
	history, err := s.resultRepo.LoadHistory()
	if err != nil {
		return nil, err
	}

	var all []model.ResultEntry
	for _, arch := range history {
		all = append(all, arch.Results...)
	}
	all = append(all, s.results.entries...)

	retracted := map[string]bool{}
	for _, e := range all {
		if e.IsTombstone() {
			retracted[e.Retracts] = true
		}
	}

	var standing []model.ResultEntry
	for _, e := range all {
		if !e.IsTombstone() && !retracted[e.ID] {
			standing = append(standing, e)
		}
	}
	return standing, nil
}

// bump adjusts one player's record by delta for the given outcome.
func (s *StatsService) bump(userID string, team model.Team, outcome model.Outcome, delta int) {
	stats, ok := s.counters[userID]
	if !ok {
		fresh := emptyStats(userID)
		stats = &fresh
		s.counters[userID] = stats
	}
	rec := stats.TeamRecords[team]
	switch outcome {
	case model.OutcomeWin:
		rec.Wins += delta
	case model.OutcomeLoss:
		rec.Losses += delta
	case model.OutcomeDraw:
		rec.Draws += delta
	}
	stats.TeamRecords[team] = rec
}

func (s *StatsService) absentCount(userID string) int {
	counts, err := s.rosterAbsentCounts()
	if err != nil {
		return 0
	}
	return counts[userID]
}

func (s *StatsService) rosterAbsentCounts() (map[string]int, error) {
	absents, err := s.profileRepo.LoadAbsents()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, users := range absents {
		for _, id := range users {
			counts[id]++
		}
	}
	return counts, nil
}

func emptyStats(userID string) model.PlayerStats {
	return model.PlayerStats{
		UserID:      userID,
		TeamRecords: map[model.Team]model.Record{},
	}
}

func copyStats(stats *model.PlayerStats) model.PlayerStats {
	out := *stats
	out.TeamRecords = map[model.Team]model.Record{}
	for team, rec := range stats.TeamRecords {
		out.TeamRecords[team] = rec
	}
	return out
}
