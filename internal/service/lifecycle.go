package service

import (
	"time"

	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/repository"
)

// historyKeep caps the archived cycle history at the most recent entries.
const historyKeep = 50

// LifecycleService exclusively owns cycle state transitions:
// OPEN → LOCKED → RESULTED → ARCHIVED, linear, no skipping, no re-opening.
// Re-entrant calls to a transition whose target state already holds are
// no-ops returning success, since the trigger may be a retried scheduled
// job. Lock acquisition uses the same guard as roster joins, so a join
// racing the scheduled lock is resolved by guard order, not timing.
type LifecycleService struct {
	cycleRepo  *repository.CycleRepository
	resultRepo *repository.ResultRepository
	guard      *cyclelock.Guard

	cycle   *model.Cycle
	results *ResultsService
	stats   *StatsService
}

// NewLifecycleService creates the controller and loads the live cycle,
// falling back to a fresh OPEN cycle with the configured default times.
func NewLifecycleService(
	cycleRepo *repository.CycleRepository,
	resultRepo *repository.ResultRepository,
	guard *cyclelock.Guard,
	defaultTimes map[model.Team]string,
) (*LifecycleService, error) {
	times, err := cycleRepo.LoadTimes(defaultTimes)
	if err != nil {
		return nil, err
	}
	cycle, err := cycleRepo.Load(times)
	if err != nil {
		return nil, err
	}
	if err := cycleRepo.Save(cycle); err != nil {
		return nil, err
	}
	return &LifecycleService{
		cycleRepo:  cycleRepo,
		resultRepo: resultRepo,
		guard:      guard,
		cycle:      cycle,
	}, nil
}

// SetResults wires the results tracker in after construction.
func (s *LifecycleService) SetResults(results *ResultsService) {
	s.results = results
}

// SetStats wires the statistics aggregator in after construction.
func (s *LifecycleService) SetStats(stats *StatsService) {
	s.stats = stats
}

// Current returns a read-only copy of the live cycle.
func (s *LifecycleService) Current() model.Cycle {
	var out model.Cycle
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		out = s.snapshotLocked()
		return nil
	})
	return out
}

// snapshotLocked deep-copies the cycle; caller holds the cycle guard.
func (s *LifecycleService) snapshotLocked() model.Cycle {
	out := *s.cycle
	out.Rosters = map[model.Team][]string{}
	for team, roster := range s.cycle.Rosters {
		out.Rosters[team] = append([]string{}, roster...)
	}
	out.Times = map[model.Team]string{}
	for team, t := range s.cycle.Times {
		out.Times[team] = t
	}
	return out
}

// State returns the live cycle's lifecycle state.
func (s *LifecycleService) State() model.CycleState {
	var state model.CycleState
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		state = s.cycle.State
		return nil
	})
	return state
}

// Lock freezes all three rosters: OPEN → LOCKED. Idempotent when the
// cycle is already locked or further along.
func (s *LifecycleService) Lock(lockedBy string) error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		switch s.cycle.State {
		case model.StateLocked, model.StateResulted, model.StateArchived:
			return nil
		case model.StateOpen:
		default:
			return ErrWrongState
		}
		s.cycle.State = model.StateLocked
		if err := s.cycleRepo.Save(s.cycle); err != nil {
			s.cycle.State = model.StateOpen
			return err
		}
		log.Info().
			Str("cycle_id", s.cycle.ID).
			Str("locked_by", lockedBy).
			Msg("Signups locked")
		return nil
	})
}

// MarkResulted advances LOCKED → RESULTED. It is permitted only once
// every team that had at least one signup has at least one standing
// result recorded; otherwise it fails with ErrIncompleteResults.
func (s *LifecycleService) MarkResulted() error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		switch s.cycle.State {
		case model.StateResulted, model.StateArchived:
			return nil
		case model.StateLocked:
		case model.StateOpen:
			return ErrWrongState
		default:
			return ErrWrongState
		}

		missing := s.teamsMissingResultsLocked()
		if len(missing) > 0 {
			return ErrIncompleteResults
		}

		s.cycle.State = model.StateResulted
		if err := s.cycleRepo.Save(s.cycle); err != nil {
			s.cycle.State = model.StateLocked
			return err
		}
		log.Info().Str("cycle_id", s.cycle.ID).Msg("Cycle marked resulted")
		return nil
	})
}

// TeamsMissingResults lists the teams blocking the RESULTED transition:
// teams with at least one signup and no standing result.
func (s *LifecycleService) TeamsMissingResults() []model.Team {
	var missing []model.Team
	s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		missing = s.teamsMissingResultsLocked()
		return nil
	})
	return missing
}

func (s *LifecycleService) teamsMissingResultsLocked() []model.Team {
	var missing []model.Team
	for _, team := range model.Teams() {
		if len(s.cycle.Rosters[team]) == 0 {
			continue
		}
		if s.results.standingCountLocked(s.cycle.ID, team) == 0 {
			missing = append(missing, team)
		}
	}
	return missing
}

// Archive completes the cycle: RESULTED → ARCHIVED. The cycle and its
// results move into the immutable history, player statistics fold in the
// newly archived cycle, and a fresh OPEN cycle with empty rosters is
// allocated. Idempotent when already archived (the fresh cycle's archive
// is a different cycle id).
func (s *LifecycleService) Archive() error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		switch s.cycle.State {
		case model.StateArchived:
			return nil
		case model.StateResulted:
		default:
			return ErrWrongState
		}

		archived := model.ArchivedCycle{
			Cycle:      s.snapshotLocked(),
			Results:    s.results.entriesForLocked(s.cycle.ID),
			ArchivedAt: time.Now().UTC(),
		}
		archived.Cycle.State = model.StateArchived

		history, err := s.resultRepo.LoadHistory()
		if err != nil {
			return err
		}

		// A retried archive after a partial failure must not append the
		// same cycle twice, so check what history already holds.
		present := map[string]bool{}
		alreadyArchived := false
		for _, arch := range history {
			if arch.Cycle.ID == s.cycle.ID {
				alreadyArchived = true
			}
			for _, e := range arch.Results {
				present[e.ID] = true
			}
		}

		// Tombstones retracting already-archived entries migrate into the
		// archive of the cycle they reference so the live log does not
		// accumulate them. A tombstone whose cycle was trimmed from the
		// history is dropped outright; its target is gone.
		migrated := map[string]bool{}
		updated := make([]model.ArchivedCycle, len(history))
		copy(updated, history)
		changed := false
		for _, tomb := range s.results.strayTombstonesLocked(s.cycle.ID) {
			migrated[tomb.ID] = true
			if present[tomb.ID] {
				continue
			}
			for i := range updated {
				if updated[i].Cycle.ID == tomb.CycleID {
					updated[i].Results = append(append([]model.ResultEntry{}, updated[i].Results...), tomb)
					changed = true
					break
				}
			}
		}
		if !alreadyArchived {
			updated = append(updated, archived)
			changed = true
		}
		if changed {
			if err := s.resultRepo.SaveHistory(updated, historyKeep); err != nil {
				return err
			}
		}

		if err := s.results.dropArchivedLocked(s.cycle.ID, migrated); err != nil {
			// Roll the archive write back: the live log is still the
			// source of truth for everything that failed to move.
			if changed {
				if rbErr := s.resultRepo.SaveHistory(history, historyKeep); rbErr != nil {
					log.Error().Err(rbErr).Msg("Failed to roll back archive append")
				}
			}
			return err
		}
		if s.stats != nil {
			s.stats.foldArchivedLocked(archived)
		}

		oldID := s.cycle.ID
		s.cycle = repository.NewCycle(s.cycle.Times)
		if err := s.cycleRepo.Save(s.cycle); err != nil {
			return err
		}
		log.Info().
			Str("archived_cycle_id", oldID).
			Str("new_cycle_id", s.cycle.ID).
			Msg("Cycle archived, fresh cycle opened")
		return nil
	})
}

// SetTime updates the scheduled time for one team on the live cycle and
// the stored defaults for future cycles.
func (s *LifecycleService) SetTime(team model.Team, value string) error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		s.cycle.Times[team] = value
		if err := s.cycleRepo.SaveTimes(s.cycle.Times); err != nil {
			return err
		}
		return s.cycleRepo.Save(s.cycle)
	})
}

// History returns the archived cycles, oldest first.
func (s *LifecycleService) History() ([]model.ArchivedCycle, error) {
	return s.resultRepo.LoadHistory()
}
