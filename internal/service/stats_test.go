package service

import (
	"fmt"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"discord-row-bot/internal/model"
)

func TestStatsService_CreditsWholeRoster(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.roster.Join(model.Team2, member("u2")))
	require.NoError(t, s.lifecycle.Lock("admin"))

	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)

	for _, id := range []string{"u1", "u2"} {
		stats := s.stats.Aggregate(id)
		assert.Equal(t, 1, stats.TeamRecords[model.Team2].Wins, id)
	}
	assert.Equal(t, 0, s.stats.Aggregate("stranger").Combined().Total())
}

func TestStatsService_SurvivesArchive(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)

	before := s.stats.Aggregate("u1").Combined()
	require.NoError(t, s.lifecycle.MarkResulted())
	require.NoError(t, s.lifecycle.Archive())
	after := s.stats.Aggregate("u1").Combined()

	// Archiving moves entries into history with no net stats change.
	assert.Equal(t, before, after)
	assert.Equal(t, 1, after.Wins)
}

func TestStatsService_RetractionReversesCredit(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team3, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	entry, err := s.results.Record(model.Team3, model.OutcomeLoss, "admin", "")
	require.NoError(t, err)

	assert.Equal(t, 1, s.stats.Aggregate("u1").TeamRecords[model.Team3].Losses)
	require.NoError(t, s.results.Retract(entry.ID, "mistake", "admin"))
	assert.Equal(t, 0, s.stats.Aggregate("u1").Combined().Total())
}

func TestStatsService_TeamTotals(t *testing.T) {
	s := mustStack(t, 5)
	require.NoError(t, s.lifecycle.Lock("admin"))

	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "")
	require.NoError(t, err)
	_, err = s.results.Record(model.Team2, model.OutcomeDraw, "admin", "")
	require.NoError(t, err)
	_, err = s.results.Record(model.Team3, model.OutcomeLoss, "admin", "")
	require.NoError(t, err)

	totals := s.stats.TeamTotals()
	assert.Equal(t, model.Record{Wins: 1, Draws: 1}, totals[model.Team2])
	assert.Equal(t, model.Record{Losses: 1}, totals[model.Team3])
}

func TestStatsService_AggregateIncludesAbsences(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.MarkAbsent("u1"))
	assert.Equal(t, 1, s.stats.Aggregate("u1").Absents)
}

// TestStatsFoldMatchesCountersProperty drives random sequences of
// record, retract and archive operations and checks after each one that
// the incrementally maintained counters equal a from-scratch fold over
// history plus the live log.
func TestStatsFoldMatchesCountersProperty(t *testing.T) {
	base := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp(base, "case-*")
		if err != nil {
			t.Fatalf("tempdir: %v", err)
		}
		s, err := newStack(dir, 10)
		if err != nil {
			t.Fatalf("stack: %v", err)
		}

		users := []string{"u0", "u1", "u2", "u3"}
		for _, id := range users {
			if rapid.Bool().Draw(t, "join-"+id) {
				team := rapid.SampledFrom(model.Teams()).Draw(t, "team-"+id)
				if err := s.roster.Join(team, member(id)); err != nil {
					t.Fatalf("join: %v", err)
				}
			}
		}
		if err := s.lifecycle.Lock("admin"); err != nil {
			t.Fatalf("lock: %v", err)
		}

		var recorded []string
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op%d", i)) {
			case 0: // record
				team := rapid.SampledFrom(model.Teams()).Draw(t, fmt.Sprintf("rteam%d", i))
				outcome := rapid.SampledFrom([]model.Outcome{
					model.OutcomeWin, model.OutcomeLoss, model.OutcomeDraw,
				}).Draw(t, fmt.Sprintf("outcome%d", i))
				entry, err := s.results.Record(team, outcome, "admin", "")
				if err != nil {
					t.Fatalf("record: %v", err)
				}
				recorded = append(recorded, entry.ID)
			case 1: // retract a random earlier result
				if len(recorded) == 0 {
					continue
				}
				id := rapid.SampledFrom(recorded).Draw(t, fmt.Sprintf("retract%d", i))
				err := s.results.Retract(id, "prop", "admin")
				if err != nil && err != ErrAlreadyRetracted {
					t.Fatalf("retract: %v", err)
				}
			case 2: // archive the cycle and lock a fresh one
				if s.lifecycle.MarkResulted() != nil {
					continue // incomplete results keep the cycle live
				}
				if err := s.lifecycle.Archive(); err != nil {
					t.Fatalf("archive: %v", err)
				}
				if err := s.lifecycle.Lock("admin"); err != nil {
					t.Fatalf("relock: %v", err)
				}
			}

			counters := map[string]model.PlayerStats{}
			for _, st := range s.stats.All() {
				st.Name = ""
				st.Absents = 0
				counters[st.UserID] = st
			}
			folded, err := s.stats.Recompute()
			if err != nil {
				t.Fatalf("recompute: %v", err)
			}
			for id, st := range folded {
				st.Name = ""
				st.Absents = 0
				folded[id] = st
			}
			pruneZero(counters)
			pruneZero(folded)
			if !reflect.DeepEqual(counters, folded) {
				t.Fatalf("counters diverged from fold:\ncounters: %+v\nfold:     %+v", counters, folded)
			}
		}
	})
}

// pruneZero drops players whose record is empty, so transient zero
// entries left by retractions do not fail the comparison.
func pruneZero(stats map[string]model.PlayerStats) {
	for id, st := range stats {
		if st.Combined().Total() == 0 {
			delete(stats, id)
			continue
		}
		for team, rec := range st.TeamRecords {
			if rec.Total() == 0 {
				delete(st.TeamRecords, team)
			}
		}
	}
}
