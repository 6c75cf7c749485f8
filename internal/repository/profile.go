package repository

import (
	"fmt"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/jsonstore"
)

// ProfileRepository persists the IGN map and signup block list.
type ProfileRepository struct {
	store *jsonstore.Store
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(store *jsonstore.Store) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// LoadProfiles reads the user ID → profile map.
func (r *ProfileRepository) LoadProfiles() (map[string]model.Profile, error) {
	profiles := map[string]model.Profile{}
	if err := r.store.Load(jsonstore.DocIGNMap, &profiles); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return profiles, nil
}

// SaveProfiles persists the profile map.
func (r *ProfileRepository) SaveProfiles(profiles map[string]model.Profile) error {
	if err := r.store.Save(jsonstore.DocIGNMap, profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}

// LoadBlocks reads the user ID → block entry map.
func (r *ProfileRepository) LoadBlocks() (map[string]model.BlockEntry, error) {
	blocks := map[string]model.BlockEntry{}
	if err := r.store.Load(jsonstore.DocBlockedUsers, &blocks); err != nil {
		return nil, fmt.Errorf("failed to load blocked users: %w", err)
	}
	return blocks, nil
}

// SaveBlocks persists the block list.
func (r *ProfileRepository) SaveBlocks(blocks map[string]model.BlockEntry) error {
	if err := r.store.Save(jsonstore.DocBlockedUsers, blocks); err != nil {
		return fmt.Errorf("failed to save blocked users: %w", err)
	}
	return nil
}

// LoadAbsents reads the cycle ID → absent user IDs map.
func (r *ProfileRepository) LoadAbsents() (map[string][]string, error) {
	absents := map[string][]string{}
	if err := r.store.Load(jsonstore.DocAbsentUsers, &absents); err != nil {
		return nil, fmt.Errorf("failed to load absent users: %w", err)
	}
	return absents, nil
}

// SaveAbsents persists the absent map.
func (r *ProfileRepository) SaveAbsents(absents map[string][]string) error {
	if err := r.store.Save(jsonstore.DocAbsentUsers, absents); err != nil {
		return fmt.Errorf("failed to save absent users: %w", err)
	}
	return nil
}
