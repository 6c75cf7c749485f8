package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/repository"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// EventTime is a parsed weekly slot such as "20:00 UTC Sunday".
type EventTime struct {
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// ParseEventTime parses "HH:MM UTC Weekday". The zone token must be UTC;
// per-team times are stored and announced in UTC only.
func ParseEventTime(value string) (EventTime, error) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) != 3 || !strings.EqualFold(fields[1], "UTC") {
		return EventTime{}, fmt.Errorf("%w: want \"HH:MM UTC Weekday\", got %q", ErrInvalidTime, value)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(fields[0], "%d:%d", &hour, &minute); err != nil {
		return EventTime{}, fmt.Errorf("%w: bad clock %q", ErrInvalidTime, fields[0])
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return EventTime{}, fmt.Errorf("%w: clock out of range %q", ErrInvalidTime, fields[0])
	}
	day, ok := weekdays[strings.ToLower(fields[2])]
	if !ok {
		return EventTime{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidTime, fields[2])
	}
	return EventTime{Hour: hour, Minute: minute, Weekday: day}, nil
}

// Next returns the first occurrence of the slot strictly after now, in UTC.
func (t EventTime) Next(now time.Time) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
	days := (int(t.Weekday) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// Reminder is one due notification: remind members of team about the
// event starting at At, Offset before it.
type Reminder struct {
	Team   model.Team
	At     time.Time
	Offset time.Duration
}

// NotificationService computes event countdowns and reminder due times,
// and owns per-user notification preferences. It sends nothing itself;
// the scheduler asks what is due and the bot delivers.
type NotificationService struct {
	repo      *repository.PrefsRepository
	lifecycle *LifecycleService
	offsets   []time.Duration
}

// NewNotificationService creates the dispatcher with the configured
// reminder offsets (largest first is conventional but not required).
func NewNotificationService(repo *repository.PrefsRepository, lifecycle *LifecycleService, offsets []time.Duration) *NotificationService {
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return &NotificationService{
		repo:      repo,
		lifecycle: lifecycle,
		offsets:   offsets,
	}
}

// NextEvent returns the next occurrence of the team's configured slot.
// A team with an unparseable or missing time has no next event.
func (s *NotificationService) NextEvent(team model.Team, now time.Time) (time.Time, error) {
	cycle := s.lifecycle.Current()
	raw, ok := cycle.Times[team]
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%w: no time configured for %s", ErrInvalidTime, team)
	}
	slot, err := ParseEventTime(raw)
	if err != nil {
		return time.Time{}, err
	}
	return slot.Next(now), nil
}

// TimeUntil returns the countdown to the team's next event.
func (s *NotificationService) TimeUntil(team model.Team, now time.Time) (time.Duration, error) {
	next, err := s.NextEvent(team, now)
	if err != nil {
		return 0, err
	}
	return next.Sub(now.UTC()), nil
}

// DueReminders returns every reminder whose send moment falls inside
// (now-tick, now]. The scheduler calls this once per tick; a reminder is
// due in exactly one tick window, so at-most-once delivery holds as long
// as ticks do not overlap.
func (s *NotificationService) DueReminders(now time.Time, tick time.Duration) []Reminder {
	now = now.UTC()
	cycle := s.lifecycle.Current()

	var due []Reminder
	for _, team := range model.Teams() {
		raw, ok := cycle.Times[team]
		if !ok || raw == "" {
			continue
		}
		slot, err := ParseEventTime(raw)
		if err != nil {
			log.Warn().Str("team", string(team)).Str("time", raw).Msg("Skipping reminders for unparseable event time")
			continue
		}
		// The event this tick's reminders refer to may be the next
		// occurrence or the one after, depending on the offset.
		for _, offset := range s.offsets {
			event := slot.Next(now.Add(offset - tick))
			sendAt := event.Add(-offset)
			if sendAt.After(now.Add(-tick)) && !sendAt.After(now) {
				due = append(due, Reminder{Team: team, At: event, Offset: offset})
			}
		}
	}
	return due
}

// Prefs returns the user's notification preferences, with every channel
// enabled by default for users who never set any.
func (s *NotificationService) Prefs(userID string) (model.NotificationPrefs, error) {
	all, err := s.repo.Load()
	if err != nil {
		return model.NotificationPrefs{}, err
	}
	prefs, ok := all[userID]
	if !ok {
		return model.NotificationPrefs{
			Channels: map[string]bool{
				model.NotificationChannelDM:      true,
				model.NotificationChannelMention: true,
			},
		}, nil
	}
	if prefs.Channels == nil {
		prefs.Channels = map[string]bool{}
	}
	return prefs, nil
}

// SetChannel flips one delivery channel on or off for the user.
func (s *NotificationService) SetChannel(userID, channel string, enabled bool) error {
	all, err := s.repo.Load()
	if err != nil {
		return err
	}
	prefs, err := s.Prefs(userID)
	if err != nil {
		return err
	}
	prefs.Channels[channel] = enabled
	all[userID] = prefs
	if err := s.repo.Save(all); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID).
		Str("channel", channel).
		Bool("enabled", enabled).
		Msg("Notification channel updated")
	return nil
}

// SetQuietHours stores a daily do-not-disturb window as "HH:MM"–"HH:MM"
// UTC. An empty start and end clears the window.
func (s *NotificationService) SetQuietHours(userID, start, end string) error {
	if (start == "") != (end == "") {
		return fmt.Errorf("%w: quiet hours need both start and end", ErrInvalidTime)
	}
	if start != "" {
		if _, err := time.Parse("15:04", start); err != nil {
			return fmt.Errorf("%w: bad quiet start %q", ErrInvalidTime, start)
		}
		if _, err := time.Parse("15:04", end); err != nil {
			return fmt.Errorf("%w: bad quiet end %q", ErrInvalidTime, end)
		}
	}
	all, err := s.repo.Load()
	if err != nil {
		return err
	}
	prefs, err := s.Prefs(userID)
	if err != nil {
		return err
	}
	prefs.QuietStart = start
	prefs.QuietEnd = end
	all[userID] = prefs
	return s.repo.Save(all)
}

// ShouldNotify reports whether a message on the given channel may be
// delivered to the user right now, honoring channel toggles and the
// quiet-hours window (which may wrap midnight).
func (s *NotificationService) ShouldNotify(userID, channel string, now time.Time) bool {
	prefs, err := s.Prefs(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load notification preferences")
		return false
	}
	if enabled, ok := prefs.Channels[channel]; ok && !enabled {
		return false
	}
	if prefs.QuietStart == "" || prefs.QuietEnd == "" {
		return true
	}
	start, err1 := time.Parse("15:04", prefs.QuietStart)
	end, err2 := time.Parse("15:04", prefs.QuietEnd)
	if err1 != nil || err2 != nil {
		return true
	}
	now = now.UTC()
	minute := now.Hour()*60 + now.Minute()
	from := start.Hour()*60 + start.Minute()
	to := end.Hour()*60 + end.Minute()
	if from <= to {
		return minute < from || minute >= to
	}
	// Window wraps midnight, e.g. 22:00–07:00.
	return minute < from && minute >= to
}
