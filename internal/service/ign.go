package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/repository"
)

// ignPattern is the accepted IGN charset: letters, digits, spaces,
// underscores and hyphens.
var ignPattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// IGN length bounds after trimming.
const (
	MinIGNLength = 1
	MaxIGNLength = 32
)

// IGNService owns the identity registry: the user → in-game-name map,
// power ratings and the signup block list.
type IGNService struct {
	repo  *repository.ProfileRepository
	guard *cyclelock.Guard

	profiles map[string]model.Profile
	blocks   map[string]model.BlockEntry
}

// NewIGNService creates an IGNService and loads its state from disk.
func NewIGNService(repo *repository.ProfileRepository, guard *cyclelock.Guard) (*IGNService, error) {
	profiles, err := repo.LoadProfiles()
	if err != nil {
		return nil, err
	}
	blocks, err := repo.LoadBlocks()
	if err != nil {
		return nil, err
	}
	return &IGNService{
		repo:     repo,
		guard:    guard,
		profiles: profiles,
		blocks:   blocks,
	}, nil
}

// SetIGN validates and stores the user's in-game name, overwriting any
// previous value. No history is retained.
func (s *IGNService) SetIGN(userID, ign string) error {
	ign = strings.TrimSpace(ign)
	if len(ign) < MinIGNLength || len(ign) > MaxIGNLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidIGN, MinIGNLength, MaxIGNLength)
	}
	if !ignPattern.MatchString(ign) {
		return fmt.Errorf("%w: only letters, digits, spaces, _ and - are allowed", ErrInvalidIGN)
	}

	return s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		if s.isBlockedLocked(userID) {
			return ErrUserBlocked
		}
		profile := s.profiles[userID]
		profile.IGN = ign
		s.profiles[userID] = profile
		if err := s.repo.SaveProfiles(s.profiles); err != nil {
			return err
		}
		log.Info().Str("user_id", userID).Str("ign", ign).Msg("IGN updated")
		return nil
	})
}

// ClearIGN removes the user's stored in-game name.
func (s *IGNService) ClearIGN(userID string) error {
	return s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		profile, ok := s.profiles[userID]
		if !ok || profile.IGN == "" {
			return nil
		}
		profile.IGN = ""
		if profile.Empty() {
			delete(s.profiles, userID)
		} else {
			s.profiles[userID] = profile
		}
		return s.repo.SaveProfiles(s.profiles)
	})
}

// IGN returns the stored in-game name, if any.
func (s *IGNService) IGN(userID string) (string, bool) {
	var ign string
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		ign = s.profiles[userID].IGN
		return nil
	})
	return ign, ign != ""
}

// ResolveDisplay returns the user's IGN if set, then the last platform
// display name seen for them, then the given fallback. It is a pure
// lookup and never fails.
func (s *IGNService) ResolveDisplay(userID, fallback string) string {
	out := fallback
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		profile := s.profiles[userID]
		switch {
		case profile.IGN != "":
			out = profile.IGN
		case profile.DisplayName != "":
			out = profile.DisplayName
		}
		return nil
	})
	return out
}

// RememberDisplayName records the platform display name seen on an
// interaction so later renders have a fallback when no IGN is set.
// A persistence failure is logged, not surfaced: the name is cosmetic.
func (s *IGNService) RememberDisplayName(userID, displayName string) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || displayName == userID {
		return
	}
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		profile := s.profiles[userID]
		if profile.DisplayName == displayName {
			return nil
		}
		profile.DisplayName = displayName
		s.profiles[userID] = profile
		if err := s.repo.SaveProfiles(s.profiles); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist display name")
		}
		return nil
	})
}

// SetPowerRating stores the admin-curated power rating for a user.
func (s *IGNService) SetPowerRating(userID string, rating float64) error {
	if rating < 0 {
		return fmt.Errorf("%w: power rating must be non-negative", ErrInvalidIGN)
	}
	return s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		profile := s.profiles[userID]
		profile.PowerRating = rating
		s.profiles[userID] = profile
		return s.repo.SaveProfiles(s.profiles)
	})
}

// Block bars a user from signups for the given number of days.
func (s *IGNService) Block(userID, blockedBy string, days int) error {
	return s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		s.blocks[userID] = model.BlockEntry{
			BlockedBy:    blockedBy,
			BlockedAt:    time.Now().UTC(),
			DurationDays: days,
		}
		if err := s.repo.SaveBlocks(s.blocks); err != nil {
			return err
		}
		log.Info().
			Str("user_id", userID).
			Str("blocked_by", blockedBy).
			Int("days", days).
			Msg("User blocked from signups")
		return nil
	})
}

// Unblock lifts a user's signup block.
func (s *IGNService) Unblock(userID string) error {
	return s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		if _, ok := s.blocks[userID]; !ok {
			return nil
		}
		delete(s.blocks, userID)
		if err := s.repo.SaveBlocks(s.blocks); err != nil {
			return err
		}
		log.Info().Str("user_id", userID).Msg("User unblocked")
		return nil
	})
}

// IsBlocked reports whether the user currently has an active block.
// Expired blocks are dropped lazily on access.
func (s *IGNService) IsBlocked(userID string) bool {
	blocked := false
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		blocked = s.isBlockedLocked(userID)
		return nil
	})
	return blocked
}

// isBlockedLocked checks the block list; caller holds the IGN guard.
func (s *IGNService) isBlockedLocked(userID string) bool {
	entry, ok := s.blocks[userID]
	if !ok {
		return false
	}
	if entry.Expired(time.Now().UTC()) {
		delete(s.blocks, userID)
		if err := s.repo.SaveBlocks(s.blocks); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist expired block removal")
		}
		return false
	}
	return true
}

// Profiles returns a copy of the profile map for read-only consumers.
func (s *IGNService) Profiles() map[string]model.Profile {
	out := map[string]model.Profile{}
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		for id, p := range s.profiles {
			out[id] = p
		}
		return nil
	})
	return out
}

// Blocks returns a copy of the active block list.
func (s *IGNService) Blocks() map[string]model.BlockEntry {
	out := map[string]model.BlockEntry{}
	now := time.Now().UTC()
	s.guard.WithLock(cyclelock.ScopeIGN, func() error {
		for id, b := range s.blocks {
			if !b.Expired(now) {
				out[id] = b
			}
		}
		return nil
	})
	return out
}
