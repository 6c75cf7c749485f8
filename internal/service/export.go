package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"discord-row-bot/internal/model"
)

// ExportService renders a snapshot into an .xlsx workbook for admins to
// download. Three sheets: current teams, player statistics and the full
// results history including archived cycles.
type ExportService struct {
	provider  *SnapshotProvider
	lifecycle *LifecycleService
}

// NewExportService creates the workbook builder.
func NewExportService(provider *SnapshotProvider, lifecycle *LifecycleService) *ExportService {
	return &ExportService{provider: provider, lifecycle: lifecycle}
}

// Workbook builds the export and returns the serialized .xlsx bytes.
func (s *ExportService) Workbook() ([]byte, error) {
	snap := s.provider.Take()
	f := excelize.NewFile()
	defer f.Close()

	if err := s.writeTeams(f, snap); err != nil {
		return nil, fmt.Errorf("export teams: %w", err)
	}
	if err := s.writeStats(f, snap); err != nil {
		return nil, fmt.Errorf("export stats: %w", err)
	}
	if err := s.writeHistory(f, snap); err != nil {
		return nil, fmt.Errorf("export history: %w", err)
	}

	// The default sheet excelize creates is replaced by ours.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export cleanup: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export serialize: %w", err)
	}
	log.Info().Int("bytes", buf.Len()).Msg("Workbook export built")
	return buf.Bytes(), nil
}

func (s *ExportService) writeTeams(f *excelize.File, snap Snapshot) error {
	const sheet = "Teams"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "Team", "Event Time", "Signups", "Capacity", "Members"); err != nil {
		return err
	}
	row := 2
	for _, team := range model.Teams() {
		roster := snap.Rosters[team]
		names := make([]string, 0, len(roster))
		for _, id := range roster {
			names = append(names, snap.Names[id])
		}
		err := setRow(f, sheet, row,
			team.DisplayName(),
			snap.Times[team],
			len(roster),
			snap.Capacity,
			strings.Join(names, ", "),
		)
		if err != nil {
			return err
		}
		row++
	}
	return nil
}

func (s *ExportService) writeStats(f *excelize.File, snap Snapshot) error {
	const sheet = "Player Stats"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "Player", "Wins", "Losses", "Draws", "Total", "Absences"); err != nil {
		return err
	}
	for i, stats := range snap.Stats {
		rec := stats.Combined()
		err := setRow(f, sheet, i+2,
			stats.Name,
			rec.Wins, rec.Losses, rec.Draws, rec.Total(),
			stats.Absents,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeHistory(f *excelize.File, snap Snapshot) error {
	const sheet = "Results History"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "Recorded At", "Cycle", "Team", "Outcome", "Enemy Alliance", "Recorded By", "Status"); err != nil {
		return err
	}

	history, err := s.lifecycle.History()
	if err != nil {
		return err
	}
	var all []model.ResultEntry
	retracted := map[string]bool{}
	for _, arch := range history {
		for _, e := range arch.Results {
			if e.IsTombstone() {
				retracted[e.Retracts] = true
				continue
			}
			all = append(all, e)
		}
	}
	all = append(all, snap.Results...)

	row := 2
	for _, e := range all {
		status := "standing"
		if retracted[e.ID] {
			status = "retracted"
		}
		err := setRow(f, sheet, row,
			e.RecordedAt.Format(time.RFC3339),
			e.CycleID,
			e.Team.DisplayName(),
			string(e.Outcome),
			e.EnemyAlliance,
			e.RecordedBy,
			status,
		)
		if err != nil {
			return err
		}
		row++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
