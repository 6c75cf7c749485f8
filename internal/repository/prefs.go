package repository

import (
	"fmt"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/jsonstore"
)

// PrefsRepository persists per-user notification preferences.
type PrefsRepository struct {
	store *jsonstore.Store
}

// NewPrefsRepository creates a new PrefsRepository instance.
func NewPrefsRepository(store *jsonstore.Store) *PrefsRepository {
	return &PrefsRepository{store: store}
}

// Load reads the user ID → preferences map.
func (r *PrefsRepository) Load() (map[string]model.NotificationPrefs, error) {
	prefs := map[string]model.NotificationPrefs{}
	if err := r.store.Load(jsonstore.DocNotificationPrefs, &prefs); err != nil {
		return nil, fmt.Errorf("failed to load notification preferences: %w", err)
	}
	return prefs, nil
}

// Save persists the preferences map.
func (r *PrefsRepository) Save(prefs map[string]model.NotificationPrefs) error {
	if err := r.store.Save(jsonstore.DocNotificationPrefs, prefs); err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}
