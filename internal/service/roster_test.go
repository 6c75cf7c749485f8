package service

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/jsonstore"
)

func TestRosterService_Join(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*stack)
		team    model.Team
		req     JoinRequest
		wantErr error
	}{
		{
			name: "plain join succeeds",
			team: model.Team2,
			req:  member("u1"),
		},
		{
			name: "main team requires marker",
			team: model.TeamMain,
			req:  JoinRequest{UserID: "u1", DisplayName: "u1"},

			wantErr: ErrNotEligible,
		},
		{
			name: "main team with marker succeeds",
			team: model.TeamMain,
			req:  member("u1"),
		},
		{
			name: "blocked user rejected",
			setup: func(s *stack) {
				require.NoError(t, s.igns.Block("u1", "admin", 7))
			},
			team:    model.Team2,
			req:     member("u1"),
			wantErr: ErrUserBlocked,
		},
		{
			name: "locked cycle rejects joins",
			setup: func(s *stack) {
				require.NoError(t, s.lifecycle.Lock("admin"))
			},
			team:    model.Team2,
			req:     member("u1"),
			wantErr: ErrCycleLocked,
		},
		{
			name: "full team rejects joins",
			setup: func(s *stack) {
				require.NoError(t, s.roster.Join(model.Team2, member("a")))
				require.NoError(t, s.roster.Join(model.Team2, member("b")))
			},
			team:    model.Team2,
			req:     member("u1"),
			wantErr: ErrTeamFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustStack(t, 2)
			if tt.setup != nil {
				tt.setup(s)
			}
			err := s.roster.Join(tt.team, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.lifecycle.Current().Member(tt.team, tt.req.UserID))
		})
	}
}

func TestRosterService_JoinIsIdempotent(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.roster.Join(model.Team2, member("u1")))

	assert.Len(t, s.lifecycle.Current().Rosters[model.Team2], 1)
}

func TestRosterService_JoinSwitchesTeams(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.roster.Join(model.Team3, member("u1")))

	cycle := s.lifecycle.Current()
	assert.False(t, cycle.Member(model.Team2, "u1"))
	assert.True(t, cycle.Member(model.Team3, "u1"))
}

func TestRosterService_FailedSaveMutatesNothing(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))

	breakDoc(t, s, jsonstore.DocEvents)

	// A plain join that cannot persist leaves the roster untouched.
	require.Error(t, s.roster.Join(model.Team3, member("u2")))
	// A team switch that cannot persist keeps the user on the old team.
	require.Error(t, s.roster.Join(model.Team3, member("u1")))

	cycle := s.lifecycle.Current()
	assert.True(t, cycle.Member(model.Team2, "u1"))
	assert.False(t, cycle.Member(model.Team3, "u1"))
	assert.False(t, cycle.Member(model.Team3, "u2"))

	// Once saves work again the switch goes through cleanly.
	fixDoc(t, s, jsonstore.DocEvents)
	require.NoError(t, s.roster.Join(model.Team3, member("u1")))
	cycle = s.lifecycle.Current()
	assert.False(t, cycle.Member(model.Team2, "u1"))
	assert.True(t, cycle.Member(model.Team3, "u1"))
}

func TestRosterService_JoinRemembersDisplayName(t *testing.T) {
	s := mustStack(t, 5)

	req := JoinRequest{UserID: "123456789", DisplayName: "Commander Shepard", HasMarker: true}
	require.NoError(t, s.roster.Join(model.Team2, req))

	// Without an IGN, renders fall back to the platform display name,
	// never the raw user id.
	snap := s.provider.Take()
	assert.Equal(t, "Commander Shepard", snap.Names["123456789"])
	assert.Equal(t, "Commander Shepard", s.igns.ResolveDisplay("123456789", "123456789"))

	// An IGN, once set, wins over the platform name.
	require.NoError(t, s.igns.SetIGN("123456789", "Shep"))
	assert.Equal(t, "Shep", s.provider.Take().Names["123456789"])

	// The platform name survives clearing the IGN and a restart.
	require.NoError(t, s.igns.ClearIGN("123456789"))
	restarted, err := newStack(s.store.Dir(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Commander Shepard", restarted.igns.ResolveDisplay("123456789", "123456789"))
}

func TestRosterService_LeaveIsIdempotent(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.roster.Leave(model.Team2, "u1"))
	// Leaving again, or leaving a team never joined, is still success.
	require.NoError(t, s.roster.Leave(model.Team2, "u1"))
	require.NoError(t, s.roster.Leave(model.Team3, "u2"))

	assert.Empty(t, s.lifecycle.Current().Rosters[model.Team2])
}

func TestRosterService_JoinPreservesOrder(t *testing.T) {
	s := mustStack(t, 5)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.roster.Join(model.Team2, member(id)))
	}
	require.NoError(t, s.roster.Leave(model.Team2, "b"))

	assert.Equal(t, []string{"a", "c"}, s.lifecycle.Current().Rosters[model.Team2])
}

func TestRosterService_MarkAbsentDedupes(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.roster.MarkAbsent("u1"))
	require.NoError(t, s.roster.MarkAbsent("u1"))

	counts, err := s.roster.AbsentCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["u1"])
}

// TestRosterInvariantsProperty drives random join/leave sequences and
// checks the two roster invariants after every step: a user is on at
// most one team, and no roster exceeds capacity.
func TestRosterInvariantsProperty(t *testing.T) {
	base := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp(base, "case-*")
		if err != nil {
			t.Fatalf("tempdir: %v", err)
		}
		capacity := rapid.IntRange(1, 5).Draw(t, "capacity")
		s, err := newStack(dir, capacity)
		if err != nil {
			t.Fatalf("stack: %v", err)
		}

		users := []string{"u0", "u1", "u2", "u3", "u4", "u5"}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(t, fmt.Sprintf("user%d", i))
			team := rapid.SampledFrom(model.Teams()).Draw(t, fmt.Sprintf("team%d", i))
			if rapid.Bool().Draw(t, fmt.Sprintf("join%d", i)) {
				err = s.roster.Join(team, member(user))
				if err != nil && err != ErrTeamFull {
					t.Fatalf("unexpected join error: %v", err)
				}
			} else {
				if err := s.roster.Leave(team, user); err != nil {
					t.Fatalf("leave must not fail: %v", err)
				}
			}

			cycle := s.lifecycle.Current()
			seen := map[string]int{}
			for _, tm := range model.Teams() {
				if len(cycle.Rosters[tm]) > capacity {
					t.Fatalf("team %s over capacity: %d > %d", tm, len(cycle.Rosters[tm]), capacity)
				}
				for _, id := range cycle.Rosters[tm] {
					seen[id]++
				}
			}
			for id, n := range seen {
				if n > 1 {
					t.Fatalf("user %s on %d teams", id, n)
				}
			}
		}
	})
}
