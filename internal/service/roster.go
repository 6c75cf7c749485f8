package service

import (
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/repository"
)

// JoinRequest carries everything the roster needs to know about the user
// asking to sign up. The handler resolves Discord roles into HasMarker so
// the roster logic stays free of any chat-platform dependency.
type JoinRequest struct {
	UserID      string
	DisplayName string
	HasMarker   bool
}

// RosterService manages the three team rosters of the live cycle.
// Rosters are ordered sets: insertion order is join order and decides
// capacity cutoffs. A user is on at most one team at a time.
type RosterService struct {
	profileRepo *repository.ProfileRepository
	guard       *cyclelock.Guard
	lifecycle   *LifecycleService
	igns        *IGNService
	capacity    int
}

// NewRosterService creates a new RosterService instance.
func NewRosterService(
	profileRepo *repository.ProfileRepository,
	guard *cyclelock.Guard,
	lifecycle *LifecycleService,
	igns *IGNService,
	capacity int,
) *RosterService {
	if capacity <= 0 {
		capacity = 40
	}
	return &RosterService{
		profileRepo: profileRepo,
		guard:       guard,
		lifecycle:   lifecycle,
		igns:        igns,
		capacity:    capacity,
	}
}

// Capacity returns the per-team roster capacity.
func (s *RosterService) Capacity() int {
	return s.capacity
}

// Join signs the user up for a team. Checks run in order: blocked user,
// main-team eligibility, cycle state, capacity. Joining a team while on
// another silently moves the user (logged); re-joining the same team is
// an idempotent success. No check mutates state when a later check fails.
func (s *RosterService) Join(team model.Team, req JoinRequest) error {
	if s.igns.IsBlocked(req.UserID) {
		return ErrUserBlocked
	}
	if team == model.TeamMain && !req.HasMarker {
		return ErrNotEligible
	}
	s.igns.RememberDisplayName(req.UserID, req.DisplayName)

	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		cycle := s.lifecycle.cycle
		if cycle.State != model.StateOpen {
			return ErrCycleLocked
		}
		if cycle.Member(team, req.UserID) {
			return nil
		}
		if len(cycle.Rosters[team]) >= s.capacity {
			return ErrTeamFull
		}

		// Snapshot every roster the join touches so a failed save can
		// restore them wholesale, team switches included.
		targetBefore := append([]string{}, cycle.Rosters[team]...)
		prev, switching := cycle.TeamOf(req.UserID)
		var prevBefore []string
		if switching {
			prevBefore = append([]string{}, cycle.Rosters[prev]...)
			s.removeLocked(prev, req.UserID)
		}
		cycle.Rosters[team] = append(cycle.Rosters[team], req.UserID)

		if err := s.lifecycle.cycleRepo.Save(cycle); err != nil {
			cycle.Rosters[team] = targetBefore
			if switching {
				cycle.Rosters[prev] = prevBefore
			}
			return err
		}
		if switching {
			log.Info().
				Str("user_id", req.UserID).
				Str("from", string(prev)).
				Str("to", string(team)).
				Msg("User switched teams")
		}
		log.Info().
			Str("user_id", req.UserID).
			Str("team", string(team)).
			Int("roster_size", len(cycle.Rosters[team])).
			Msg("User joined team")
		return nil
	})
}

// Leave removes the user from a team. Leaving a team the user is not on
// is a no-op returning success, not an error.
func (s *RosterService) Leave(team model.Team, userID string) error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		cycle := s.lifecycle.cycle
		if cycle.State != model.StateOpen {
			return ErrCycleLocked
		}
		if !cycle.Member(team, userID) {
			return nil
		}
		s.removeLocked(team, userID)
		if err := s.lifecycle.cycleRepo.Save(cycle); err != nil {
			return err
		}
		log.Info().
			Str("user_id", userID).
			Str("team", string(team)).
			Msg("User left team")
		return nil
	})
}

// removeLocked drops the user from one roster preserving the join order
// of the remaining members. Caller holds the cycle guard.
func (s *RosterService) removeLocked(team model.Team, userID string) {
	roster := s.lifecycle.cycle.Rosters[team]
	kept := roster[:0:0]
	for _, id := range roster {
		if id != userID {
			kept = append(kept, id)
		}
	}
	s.lifecycle.cycle.Rosters[team] = kept
}

// MarkAbsent records the user as absent for the live cycle. Marking the
// same user twice in one cycle is a no-op.
func (s *RosterService) MarkAbsent(userID string) error {
	return s.guard.WithLock(cyclelock.ScopeCycle, func() error {
		cycleID := s.lifecycle.cycle.ID
		absents, err := s.profileRepo.LoadAbsents()
		if err != nil {
			return err
		}
		for _, id := range absents[cycleID] {
			if id == userID {
				return nil
			}
		}
		absents[cycleID] = append(absents[cycleID], userID)
		if err := s.profileRepo.SaveAbsents(absents); err != nil {
			return err
		}
		log.Info().Str("user_id", userID).Str("cycle_id", cycleID).Msg("User marked absent")
		return nil
	})
}

// AbsentCounts tallies absences per user across all recorded cycles.
func (s *RosterService) AbsentCounts() (map[string]int, error) {
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

// Rosters returns a read-only copy of the live rosters.
func (s *RosterService) Rosters() map[model.Team][]string {
	cycle := s.lifecycle.Current()
	return cycle.Rosters
}
