package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/pkg/jsonstore"
	"discord-row-bot/internal/repository"
)

// stack is a fully wired service layer over a throwaway data directory.
type stack struct {
	store       *jsonstore.Store
	guard       *cyclelock.Guard
	cycleRepo   *repository.CycleRepository
	resultRepo  *repository.ResultRepository
	profileRepo *repository.ProfileRepository
	prefsRepo   *repository.PrefsRepository

	igns      *IGNService
	lifecycle *LifecycleService
	results   *ResultsService
	stats     *StatsService
	roster    *RosterService
	notify    *NotificationService
	provider  *SnapshotProvider
}

func defaultTestTimes() map[model.Team]string {
	return map[model.Team]string{
		model.TeamMain: "20:00 UTC Sunday",
		model.Team2:    "20:00 UTC Saturday",
		model.Team3:    "14:00 UTC Sunday",
	}
}

// newStack wires the full service graph rooted at dir. Kept free of
// testing.T so property tests can build fresh stacks per iteration.
func newStack(dir string, capacity int) (*stack, error) {
	store, err := jsonstore.New(dir)
	if err != nil {
		return nil, err
	}
	s := &stack{
		store:       store,
		guard:       cyclelock.NewGuard(),
		cycleRepo:   repository.NewCycleRepository(store),
		resultRepo:  repository.NewResultRepository(store),
		profileRepo: repository.NewProfileRepository(store),
		prefsRepo:   repository.NewPrefsRepository(store),
	}

	if s.igns, err = NewIGNService(s.profileRepo, s.guard); err != nil {
		return nil, err
	}
	if s.lifecycle, err = NewLifecycleService(s.cycleRepo, s.resultRepo, s.guard, defaultTestTimes()); err != nil {
		return nil, err
	}
	if s.results, err = NewResultsService(s.resultRepo, s.guard, s.lifecycle); err != nil {
		return nil, err
	}
	if s.stats, err = NewStatsService(s.resultRepo, s.profileRepo, s.guard, s.lifecycle, s.results, s.igns); err != nil {
		return nil, err
	}
	s.roster = NewRosterService(s.profileRepo, s.guard, s.lifecycle, s.igns, capacity)
	s.notify = NewNotificationService(s.prefsRepo, s.lifecycle, []time.Duration{24 * time.Hour, time.Hour})
	s.provider = NewSnapshotProvider(s.lifecycle, s.results, s.stats, s.igns, capacity)
	return s, nil
}

func mustStack(t *testing.T, capacity int) *stack {
	t.Helper()
	s, err := newStack(t.TempDir(), capacity)
	require.NoError(t, err)
	return s
}

func member(userID string) JoinRequest {
	return JoinRequest{UserID: userID, DisplayName: "user-" + userID, HasMarker: true}
}

// breakDoc replaces a store document with a directory so the next save
// of that document fails at the rename step.
func breakDoc(t *testing.T, s *stack, doc string) {
	t.Helper()
	path := filepath.Join(s.store.Dir(), doc+".json")
	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, os.Mkdir(path, 0o755))
}

// fixDoc undoes breakDoc; the in-memory state rewrites the document on
// the next save.
func fixDoc(t *testing.T, s *stack, doc string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(filepath.Join(s.store.Dir(), doc+".json")))
}
