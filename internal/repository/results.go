package repository

import (
	"fmt"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/jsonstore"
)

// ResultRepository persists the append-only match result log and the
// append-only archive of completed cycles.
type ResultRepository struct {
	store *jsonstore.Store
}

// NewResultRepository creates a new ResultRepository instance.
func NewResultRepository(store *jsonstore.Store) *ResultRepository {
	return &ResultRepository{store: store}
}

// LoadResults reads the live result log for the current cycle era.
func (r *ResultRepository) LoadResults() ([]model.ResultEntry, error) {
	entries := []model.ResultEntry{}
	if err := r.store.Load(jsonstore.DocEventResults, &entries); err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return entries, nil
}

// SaveResults persists the live result log. Entries are only ever
// appended by callers; the log shrinks only when a cycle is archived and
// its entries move into history.
func (r *ResultRepository) SaveResults(entries []model.ResultEntry) error {
	if err := r.store.Save(jsonstore.DocEventResults, entries); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

// LoadHistory reads the archived cycle history, oldest first.
func (r *ResultRepository) LoadHistory() ([]model.ArchivedCycle, error) {
	history := []model.ArchivedCycle{}
	if err := r.store.Load(jsonstore.DocEventsHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return history, nil
}

// SaveHistory persists the archive, trimming to the most recent keep
// entries when keep is positive.
func (r *ResultRepository) SaveHistory(history []model.ArchivedCycle, keep int) error {
	if keep > 0 && len(history) > keep {
		history = history[len(history)-keep:]
	}
	if err := r.store.Save(jsonstore.DocEventsHistory, history); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
