package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"discord-row-bot/internal/model"
)

func TestExportService_Workbook(t *testing.T) {
	s := mustStack(t, 5)
	export := NewExportService(s.provider, s.lifecycle)

	require.NoError(t, s.igns.SetIGN("u1", "Alpha"))
	require.NoError(t, s.roster.Join(model.Team2, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	_, err := s.results.Record(model.Team2, model.OutcomeWin, "admin", "Foes")
	require.NoError(t, err)

	data, err := export.Workbook()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Teams", "Player Stats", "Results History"}, f.GetSheetList())

	// The roster sheet carries the member's IGN.
	rows, err := f.GetRows("Teams")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Contains(t, rows[2], "Alpha")

	stats, err := f.GetRows("Player Stats")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Alpha", stats[1][0])

	history, err := f.GetRows("Results History")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, history[1], "Foes")
	assert.Contains(t, history[1], "standing")
}

func TestSnapshotProvider_Take(t *testing.T) {
	s := mustStack(t, 5)

	require.NoError(t, s.igns.SetIGN("u1", "Alpha"))
	require.NoError(t, s.roster.Join(model.TeamMain, member("u1")))
	require.NoError(t, s.lifecycle.Lock("admin"))
	_, err := s.results.Record(model.TeamMain, model.OutcomeWin, "admin", "Foes")
	require.NoError(t, err)

	snap := s.provider.Take()
	assert.Equal(t, model.StateLocked, snap.State)
	assert.Equal(t, []string{"u1"}, snap.Rosters[model.TeamMain])
	assert.Equal(t, "Alpha", snap.Names["u1"])
	assert.Equal(t, 5, snap.Capacity)
	require.Len(t, snap.Results, 1)
	require.Len(t, snap.Enemies, 1)
	assert.Equal(t, "Foes", snap.Enemies[0].Alliance)
	assert.Equal(t, model.Record{Wins: 1}, snap.Enemies[0].Record)

	// Mutating the snapshot must not touch live state.
	snap.Rosters[model.TeamMain][0] = "intruder"
	assert.Equal(t, []string{"u1"}, s.lifecycle.Current().Rosters[model.TeamMain])
}
