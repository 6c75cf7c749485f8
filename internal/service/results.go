package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/repository"
)

// ResultsService owns the append-only match result log. Entries are
// recorded against the live cycle while it is LOCKED or RESULTED, never
// edited in place; an admin retraction appends a tombstone referencing
// the original entry.
type ResultsService struct {
	repo      *repository.ResultRepository
	guard     *cyclelock.Guard
	lifecycle *LifecycleService
	stats     *StatsService

	entries []model.ResultEntry
}

// NewResultsService creates the tracker and loads the live result log.
func NewResultsService(
	repo *repository.ResultRepository,
	guard *cyclelock.Guard,
	lifecycle *LifecycleService,
) (*ResultsService, error) {
	entries, err := repo.LoadResults()
	if err != nil {
		return nil, err
	}
	s := &ResultsService{
		repo:      repo,
		guard:     guard,
		lifecycle: lifecycle,
		entries:   entries,
	}
	lifecycle.SetResults(s)
	return s, nil
}

// SetStats wires the statistics aggregator in after construction.
func (s *ResultsService) SetStats(stats *StatsService) {
	s.stats = stats
}

// Record appends a match outcome for a team in the live cycle. The cycle
// must be LOCKED or RESULTED: results are never recorded while signups
// are still open, and an archived cycle's log is immutable.
func (s *ResultsService) Record(team model.Team, outcome model.Outcome, recordedBy, enemyAlliance string) (model.ResultEntry, error) {
	var entry model.ResultEntry
	err := s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		state := s.lifecycle.cycle.State
		if state != model.StateLocked && state != model.StateResulted {
			return ErrWrongState
		}

		entry = model.ResultEntry{
			ID:            uuid.NewString(),
			CycleID:       s.lifecycle.cycle.ID,
			Team:          team,
			Outcome:       outcome,
			RecordedBy:    recordedBy,
			RecordedAt:    time.Now().UTC(),
			EnemyAlliance: enemyAlliance,
		}
		s.entries = append(s.entries, entry)
		if err := s.repo.SaveResults(s.entries); err != nil {
			s.entries = s.entries[:len(s.entries)-1]
			return err
		}
		if s.stats != nil {
			s.stats.applyResultLocked(s.lifecycle.cycle.Rosters[team], team, outcome)
		}
		log.Info().
			Str("result_id", entry.ID).
			Str("team", string(team)).
			Str("outcome", string(outcome)).
			Str("recorded_by", recordedBy).
			Msg("Match result recorded")
		return nil
	})
	return entry, err
}

// Retract appends a tombstone cancelling an earlier result. The original
// entry stays in the log so the history only ever grows; statistics
// recomputation skips tombstoned entries.
func (s *ResultsService) Retract(resultID, reason, retractedBy string) error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		original, ok := s.findLocked(resultID)
		if !ok {
			return ErrResultNotFound
		}
		if s.isRetractedLocked(resultID) {
			return ErrAlreadyRetracted
		}

		tomb := model.ResultEntry{
			ID:         uuid.NewString(),
			CycleID:    original.CycleID,
			Team:       original.Team,
			RecordedBy: retractedBy,
			RecordedAt: time.Now().UTC(),
			Retracts:   resultID,
			Reason:     reason,
		}
		s.entries = append(s.entries, tomb)
		if err := s.repo.SaveResults(s.entries); err != nil {
			s.entries = s.entries[:len(s.entries)-1]
			return err
		}
		if s.stats != nil {
			s.stats.unapplyResultLocked(original)
		}
		log.Info().
			Str("result_id", resultID).
			Str("retracted_by", retractedBy).
			Str("reason", reason).
			Msg("Match result retracted")
		return nil
	})
}

// Entries returns a copy of the live result log.
func (s *ResultsService) Entries() []model.ResultEntry {
	var out []model.ResultEntry
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		out = append(out, s.entries...)
		return nil
	})
	return out
}

// Standing returns the non-tombstoned results for the live cycle.
func (s *ResultsService) Standing() []model.ResultEntry {
	var out []model.ResultEntry
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		cycleID := s.lifecycle.cycle.ID
		for _, e := range s.entries {
			if e.CycleID == cycleID && !e.IsTombstone() && !s.isRetractedLocked(e.ID) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}

// findLocked looks up an entry anywhere in the live log or the archived
// history. Caller holds the cycle guard.
func (s *ResultsService) findLocked(resultID string) (model.ResultEntry, bool) {
	for _, e := range s.entries {
		if e.ID == resultID {
			return e, true
		}
	}
	history, err := s.repo.LoadHistory()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load history during result lookup")
		return model.ResultEntry{}, false
	}
	for _, arch := range history {
		for _, e := range arch.Results {
			if e.ID == resultID {
				return e, true
			}
		}
	}
	return model.ResultEntry{}, false
}

// isRetractedLocked reports whether any tombstone in the live log or
// history targets the given entry.
func (s *ResultsService) isRetractedLocked(resultID string) bool {
	for _, e := range s.entries {
		if e.Retracts == resultID {
			return true
		}
	}
	history, err := s.repo.LoadHistory()
	if err != nil {
		return false
	}
	for _, arch := range history {
		for _, e := range arch.Results {
			if e.Retracts == resultID {
				return true
			}
		}
	}
	return false
}

// standingCountLocked counts non-tombstoned results for (cycle, team).
// Caller holds the cycle guard.
func (s *ResultsService) standingCountLocked(cycleID string, team model.Team) int {
	count := 0
	for _, e := range s.entries {
		if e.CycleID != cycleID || e.Team != team || e.IsTombstone() {
			continue
		}
		retracted := false
		for _, t := range s.entries {
			if t.Retracts == e.ID {
				retracted = true
				break
			}
		}
		if !retracted {
			count++
		}
	}
	return count
}

// entriesForLocked returns every live entry belonging to the cycle,
// tombstones included. Caller holds the cycle guard.
func (s *ResultsService) entriesForLocked(cycleID string) []model.ResultEntry {
	var out []model.ResultEntry
	for _, e := range s.entries {
		if e.CycleID == cycleID {
			out = append(out, e)
		}
	}
	return out
}

// strayTombstonesLocked returns live tombstones that retract entries of
// already archived cycles. They accrue when an admin retracts a result
// after its cycle left the live log. Caller holds the cycle guard.
func (s *ResultsService) strayTombstonesLocked(liveCycleID string) []model.ResultEntry {
	var out []model.ResultEntry
	for _, e := range s.entries {
		if e.IsTombstone() && e.CycleID != liveCycleID {
			out = append(out, e)
		}
	}
	return out
}

// dropArchivedLocked removes a cycle's entries from the live log after
// they have been copied into history, along with any tombstones migrated
// into older archives. Caller holds the cycle guard.
func (s *ResultsService) dropArchivedLocked(cycleID string, migrated map[string]bool) error {
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.CycleID == cycleID || migrated[e.ID] {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(s.entries) {
		return nil
	}
	prev := s.entries
	s.entries = kept
	if err := s.repo.SaveResults(s.entries); err != nil {
		s.entries = prev
		return err
	}
	return nil
}
