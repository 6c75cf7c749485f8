package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-row-bot/internal/model"
)

func TestResultsService_RecordRequiresLockedOrResulted(t *testing.T) {
	s := mustStack(t, 5)

	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	assert.ErrorIs(t, err, ErrWrongState)

	require.NoError(t, s.lifecycle.Lock("admin"))
	entry, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "Foes")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, s.lifecycle.Current().ID, entry.CycleID)
	assert.Equal(t, "Foes", entry.EnemyAlliance)

	// Still recordable after the cycle is marked resulted.
	require.NoError(t, s.lifecycle.MarkResulted())
	_, err = s.results.Record(model.Team3, model.OutcomeDraw, "admin", "")
	assert.NoError(t, err)
}

func TestResultsService_Retract(t *testing.T) {
	s := mustStack(t, 5)
	require.NoError(t, s.lifecycle.Lock("admin"))

	entry, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)

	require.NoError(t, s.results.Retract(entry.ID, "wrong team", "admin"))

	// The log only grows: original plus tombstone.
	entries := s.results.Entries()
	require.Len(t, entries, 2)
	tomb := entries[1]
	assert.True(t, tomb.IsTombstone())
	assert.Equal(t, entry.ID, tomb.Retracts)
	assert.Equal(t, "wrong team", tomb.Reason)

	// The retracted entry no longer stands.
	assert.Empty(t, s.results.Standing())
}

func TestResultsService_RetractErrors(t *testing.T) {
	s := mustStack(t, 5)
	require.NoError(t, s.lifecycle.Lock("admin"))

	entry, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.results.Retract("no-such-id", "x", "admin"), ErrResultNotFound)

	require.NoError(t, s.results.Retract(entry.ID, "dup check", "admin"))
	assert.ErrorIs(t, s.results.Retract(entry.ID, "again", "admin"), ErrAlreadyRetracted)
}

func TestResultsService_StandingFiltersOtherCycles(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)
	require.NoError(t, s.lifecycle.MarkResulted())
	require.NoError(t, s.lifecycle.Archive())

	// The archived cycle's results are not standing for the fresh cycle.
	assert.Empty(t, s.results.Standing())
}

func TestResultsService_RetractArchivedResult(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	entry, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)
	require.NoError(t, s.lifecycle.MarkResulted())
	require.NoError(t, s.lifecycle.Archive())

	// Archived entries can still be tombstoned and stats drop the win.
	require.NoError(t, s.results.Retract(entry.ID, "late correction", "admin"))
	stats := s.stats.Aggregate("u1")
	assert.Equal(t, 0, stats.Combined().Wins)
}
