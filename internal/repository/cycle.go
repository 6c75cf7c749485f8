// Package repository provides typed access to the JSON document store.
// Repositories read and write whole collections; callers serialize their
// read-modify-write sequences with the cycle guard.
package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/jsonstore"
)

// CycleRepository persists the live event cycle and its per-team times.
type CycleRepository struct {
	store *jsonstore.Store
}

// NewCycleRepository creates a new CycleRepository instance.
func NewCycleRepository(store *jsonstore.Store) *CycleRepository {
	return &CycleRepository{store: store}
}

// Load reads the current cycle. If none has ever been persisted, a fresh
// OPEN cycle is returned using the given default times.
func (r *CycleRepository) Load(defaultTimes map[model.Team]string) (*model.Cycle, error) {
	var cycle model.Cycle
	if err := r.store.Load(jsonstore.DocEvents, &cycle); err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.ID == "" {
		fresh := NewCycle(defaultTimes)
		return fresh, nil
	}
	if cycle.Rosters == nil {
		cycle.Rosters = model.NewRosters()
	}
	for _, team := range model.Teams() {
		if _, ok := cycle.Rosters[team]; !ok {
			cycle.Rosters[team] = []string{}
		}
	}
	return &cycle, nil
}

// Save persists the current cycle.
func (r *CycleRepository) Save(cycle *model.Cycle) error {
	if err := r.store.Save(jsonstore.DocEvents, cycle); err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}

// LoadTimes reads the per-team event times, falling back to defaults for
// any team without a stored override.
func (r *CycleRepository) LoadTimes(defaults map[model.Team]string) (map[model.Team]string, error) {
	times := map[model.Team]string{}
	if err := r.store.Load(jsonstore.DocRowTimes, &times); err != nil {
		return nil, fmt.Errorf("failed to load event times: %w", err)
	}
	for team, t := range defaults {
		if _, ok := times[team]; !ok {
			times[team] = t
		}
	}
	return times, nil
}

// SaveTimes persists the per-team event times.
func (r *CycleRepository) SaveTimes(times map[model.Team]string) error {
	if err := r.store.Save(jsonstore.DocRowTimes, times); err != nil {
		return fmt.Errorf("failed to save event times: %w", err)
	}
	return nil
}

// NewCycle allocates a fresh OPEN cycle with empty rosters.
func NewCycle(times map[model.Team]string) *model.Cycle {
	copied := map[model.Team]string{}
	for team, t := range times {
		copied[team] = t
	}
	return &model.Cycle{
		ID:        uuid.NewString(),
		State:     model.StateOpen,
		CreatedAt: time.Now().UTC(),
		Rosters:   model.NewRosters(),
		Times:     copied,
	}
}
