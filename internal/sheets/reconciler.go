package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/ratelimit"
	"discord-row-bot/internal/pkg/retry"
	"discord-row-bot/internal/service"
)

// Tab names in the mirror spreadsheet.
const (
	TabTeams     = "Current Teams"
	TabStats     = "Player Stats"
	TabResults   = "Match Results"
	TabAlliances = "Alliance Tracking"
	TabDashboard = "Dashboard"
)

// table describes one mirrored tab: its header and how to project a
// snapshot into rows. The first column of every row is the upsert key.
type table struct {
	name   string
	header []string
	rows   func(service.Snapshot) [][]string
}

// TableResult is the outcome of reconciling one tab.
type TableResult struct {
	Table string
	Err   error
}

// Report is the outcome of a full sync. Err is the first table error, so
// callers can treat the report as a single success/failure while still
// seeing which tables lagged.
type Report struct {
	Results []TableResult
	Err     error
}

// Reconciler pushes snapshots into the spreadsheet, one upsert-by-key
// pass per tab. Rows written by a partially failed sync are never rolled
// back; the next sync converges them.
type Reconciler struct {
	remote  Remote
	limiter *ratelimit.Limiter
	policy  retry.Policy
	tables  []table
}

// NewReconciler creates an enabled reconciler over the given remote.
func NewReconciler(remote Remote, limiter *ratelimit.Limiter, policy retry.Policy) *Reconciler {
	return &Reconciler{
		remote:  remote,
		limiter: limiter,
		policy:  policy,
		tables:  mirrorTables(),
	}
}

// NewDisabled creates a reconciler whose every operation reports
// ErrSheetsDisabled. Used when credentials are absent or broken so the
// rest of the bot runs unaffected.
func NewDisabled() *Reconciler {
	return &Reconciler{}
}

// Enabled reports whether the reconciler has a working remote.
func (r *Reconciler) Enabled() bool {
	return r.remote != nil
}

// SyncAll reconciles every tab against the snapshot. A failing tab does
// not stop the remaining tabs; the report carries per-tab outcomes.
func (r *Reconciler) SyncAll(ctx context.Context, snap service.Snapshot) Report {
	if !r.Enabled() {
		return Report{Err: ErrSheetsDisabled}
	}

	var report Report
	for _, t := range r.tables {
		err := r.syncTable(ctx, t, snap)
		report.Results = append(report.Results, TableResult{Table: t.name, Err: err})
		if err != nil && report.Err == nil {
			report.Err = fmt.Errorf("sync %s: %w", t.name, err)
		}
	}
	if report.Err == nil {
		log.Info().Str("cycle_id", snap.CycleID).Msg("Sheets sync complete")
	} else {
		log.Error().Err(report.Err).Msg("Sheets sync finished with failures")
	}
	return report
}

// Load fetches the raw contents of every mirrored tab. Reverse path for
// the explicit admin load command only; it never writes local state.
func (r *Reconciler) Load(ctx context.Context) (map[string][][]string, error) {
	if !r.Enabled() {
		return nil, ErrSheetsDisabled
	}
	out := map[string][][]string{}
	for _, t := range r.tables {
		var rows [][]string
		err := r.call(ctx, "load "+t.name, func(ctx context.Context) error {
			var err error
			rows, err = r.remote.Read(ctx, t.name)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", t.name, err)
		}
		out[t.name] = rows
	}
	return out, nil
}

// syncTable runs one upsert-by-key pass: read the tab, match desired
// rows to existing ones by key column, update in place or append.
func (r *Reconciler) syncTable(ctx context.Context, t table, snap service.Snapshot) error {
	var existing [][]string
	err := r.call(ctx, "read "+t.name, func(ctx context.Context) error {
		var err error
		existing, err = r.remote.Read(ctx, t.name)
		return err
	})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		if err := r.writeRow(ctx, t.name, 0, t.header); err != nil {
			return err
		}
		existing = [][]string{t.header}
	}

	// Key column → 1-based sheet row. Header occupies row 1.
	index := map[string]int{}
	for i, row := range existing[1:] {
		if len(row) > 0 && row[0] != "" {
			index[row[0]] = i + 2
		}
	}

	next := len(existing) + 1
	for _, desired := range t.rows(snap) {
		key := desired[0]
		if row, ok := index[key]; ok {
			if !rowEqual(existing[row-1], desired) {
				if err := r.writeRow(ctx, t.name, row, desired); err != nil {
					return err
				}
			}
			continue
		}
		if err := r.writeRow(ctx, t.name, 0, desired); err != nil {
			return err
		}
		index[key] = next
		next++
	}
	return nil
}

// writeRow updates the given 1-based row, or appends when row is 0.
func (r *Reconciler) writeRow(ctx context.Context, tab string, row int, values []string) error {
	if row > 0 {
		return r.call(ctx, "update "+tab, func(ctx context.Context) error {
			return r.remote.Update(ctx, tab, row, values)
		})
	}
	return r.call(ctx, "append "+tab, func(ctx context.Context) error {
		return r.remote.Append(ctx, tab, values)
	})
}

// call applies the shared quota gate and retry policy to one remote call.
func (r *Reconciler) call(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx); err != nil {
			return err
		}
	}
	return r.policy.Do(ctx, name, op)
}

func rowEqual(a, b []string) bool {
	if len(a) != len(b) {
		// Existing rows may carry trailing empty cells the API trims.
		for len(a) < len(b) {
			a = append(a, "")
		}
		for len(b) < len(a) {
			b = append(b, "")
		}
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mirrorTables() []table {
	return []table{
		{
			name:   TabTeams,
			header: []string{"Team", "Event Time", "Signups", "Capacity", "Members"},
			rows: func(snap service.Snapshot) [][]string {
				var out [][]string
				for _, team := range model.Teams() {
					roster := snap.Rosters[team]
					names := ""
					for i, id := range roster {
						if i > 0 {
							names += ", "
						}
						names += snap.Names[id]
					}
					out = append(out, []string{
						string(team),
						snap.Times[team],
						strconv.Itoa(len(roster)),
						strconv.Itoa(snap.Capacity),
						names,
					})
				}
				return out
			},
		},
		{
			name:   TabStats,
			header: []string{"User ID", "Player", "Wins", "Losses", "Draws", "Total", "Absences"},
			rows: func(snap service.Snapshot) [][]string {
				var out [][]string
				for _, stats := range snap.Stats {
					rec := stats.Combined()
					out = append(out, []string{
						stats.UserID,
						stats.Name,
						strconv.Itoa(rec.Wins),
						strconv.Itoa(rec.Losses),
						strconv.Itoa(rec.Draws),
						strconv.Itoa(rec.Total()),
						strconv.Itoa(stats.Absents),
					})
				}
				return out
			},
		},
		{
			name:   TabResults,
			header: []string{"Result ID", "Cycle", "Team", "Outcome", "Enemy Alliance", "Recorded By", "Recorded At"},
			rows: func(snap service.Snapshot) [][]string {
				var out [][]string
				for _, e := range snap.Results {
					out = append(out, []string{
						e.ID,
						e.CycleID,
						string(e.Team),
						string(e.Outcome),
						e.EnemyAlliance,
						e.RecordedBy,
						e.RecordedAt.Format(time.RFC3339),
					})
				}
				return out
			},
		},
		{
			name:   TabAlliances,
			header: []string{"Alliance", "Wins", "Losses", "Draws", "Last Seen"},
			rows: func(snap service.Snapshot) [][]string {
				var out [][]string
				for _, enemy := range snap.Enemies {
					out = append(out, []string{
						enemy.Alliance,
						strconv.Itoa(enemy.Record.Wins),
						strconv.Itoa(enemy.Record.Losses),
						strconv.Itoa(enemy.Record.Draws),
						enemy.LastSeen.Format(time.RFC3339),
					})
				}
				return out
			},
		},
		{
			name:   TabDashboard,
			header: []string{"Metric", "Value"},
			rows: func(snap service.Snapshot) [][]string {
				signups := 0
				for _, roster := range snap.Rosters {
					signups += len(roster)
				}
				return [][]string{
					{"Cycle", snap.CycleID},
					{"State", string(snap.State)},
					{"Total Signups", strconv.Itoa(signups)},
					{"Standing Results", strconv.Itoa(len(snap.Results))},
					{"Known Players", strconv.Itoa(len(snap.Stats))},
					{"Last Synced", snap.TakenAt.Format(time.RFC3339)},
				}
			},
		},
	}
}
