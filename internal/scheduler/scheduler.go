// Package scheduler drives the weekly event cadence: posting the signup
// message, locking rosters, sending event reminders and the weekly
// summary. It owns no business rules; every action is a service call
// that is idempotent against retried or missed ticks.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/config"
	"discord-row-bot/internal/handler"
	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
)

// Announcer is the messaging surface the scheduler needs from the bot.
type Announcer interface {
	Announce(channelID, content string, components []discordgo.MessageComponent) error
	SendDM(userID, content string) error
}

// Scheduler ticks through the weekly cadence.
type Scheduler struct {
	cfg       *config.Config
	lifecycle *service.LifecycleService
	notify    *service.NotificationService
	stats     *service.StatsService
	results   *service.ResultsService
	igns      *service.IGNService
	announcer Announcer

	lastTick time.Time
}

// New creates the scheduler.
func New(
	cfg *config.Config,
	lifecycle *service.LifecycleService,
	notify *service.NotificationService,
	stats *service.StatsService,
	results *service.ResultsService,
	igns *service.IGNService,
	announcer Announcer,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		lifecycle: lifecycle,
		notify:    notify,
		stats:     stats,
		results:   results,
		igns:      igns,
		announcer: announcer,
	}
}

// Run ticks until the context is cancelled. Marks that fell while the
// bot was down are not replayed: the first tick only looks back one tick
// interval.
func (s *Scheduler) Run(ctx context.Context) {
	tick := s.cfg.Scheduler.Tick
	if tick <= 0 {
		tick = time.Minute
	}
	s.lastTick = time.Now().UTC()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	log.Info().Dur("tick", tick).Msg("Scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopped")
			return
		case now := <-ticker.C:
			s.step(now.UTC(), tick)
		}
	}
}

// step runs one tick: fire every weekly mark that passed since the
// previous tick, then deliver due reminders.
func (s *Scheduler) step(now time.Time, tick time.Duration) {
	sched := s.cfg.Scheduler

	if s.markDue(now, time.Weekday(sched.PostDay), sched.PostHour) {
		s.postSignups()
	}
	if s.markDue(now, time.Weekday(sched.LockDay), sched.LockHour) {
		if err := s.lifecycle.Lock("scheduler"); err != nil {
			log.Error().Err(err).Msg("Scheduled lock failed")
		}
	}
	if s.markDue(now, time.Weekday(sched.SummaryDay), sched.SummaryHour) {
		s.postSummary()
	}

	for _, reminder := range s.notify.DueReminders(now, tick) {
		s.sendReminder(reminder)
	}

	s.lastTick = now
}

// markDue reports whether the weekly mark (day, hour) falls inside
// (lastTick, now].
func (s *Scheduler) markDue(now time.Time, day time.Weekday, hour int) bool {
	mark := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	mark = mark.AddDate(0, 0, -((int(now.Weekday()) - int(day) + 7) % 7))
	if mark.After(now) {
		mark = mark.AddDate(0, 0, -7)
	}
	return mark.After(s.lastTick) && !mark.After(now)
}

// postSignups archives a finished cycle if one is waiting and posts the
// weekly signup message. A still-locked cycle is left alone: signups
// must not silently re-open over unrecorded results.
func (s *Scheduler) postSignups() {
	switch s.lifecycle.State() {
	case model.StateResulted:
		if err := s.lifecycle.Archive(); err != nil {
			log.Error().Err(err).Msg("Scheduled archive failed")
			return
		}
	case model.StateLocked:
		log.Warn().Msg("Skipping scheduled signup post: previous cycle still locked without results")
		return
	}

	cycle := s.lifecycle.Current()
	var b strings.Builder
	b.WriteString("📣 **Rally of War — signups are open!**\n\n")
	for _, team := range model.Teams() {
		fmt.Fprintf(&b, "%s — %s\n", team.DisplayName(), cycle.Times[team])
	}
	b.WriteString("\nUse the buttons below to join or leave a team.")

	if err := s.announcer.Announce(s.cfg.Discord.AlertChannelID, b.String(), handler.SignupComponents()); err != nil {
		log.Error().Err(err).Msg("Failed to post scheduled signup message")
	}
}

// postSummary announces the week's standing results and all-time totals.
func (s *Scheduler) postSummary() {
	standing := s.results.Standing()
	totals := s.stats.TeamTotals()

	var b strings.Builder
	b.WriteString("📊 **Weekly summary**\n\n")
	if len(standing) == 0 {
		b.WriteString("No results recorded this week.\n")
	}
	for _, e := range standing {
		fmt.Fprintf(&b, "%s — **%s**", e.Team.DisplayName(), e.Outcome)
		if e.EnemyAlliance != "" {
			fmt.Fprintf(&b, " vs %s", e.EnemyAlliance)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAll-time:\n")
	for _, team := range model.Teams() {
		rec := totals[team]
		fmt.Fprintf(&b, "%s — %d W / %d L / %d D\n", team.DisplayName(), rec.Wins, rec.Losses, rec.Draws)
	}

	if err := s.announcer.Announce(s.cfg.Discord.AlertChannelID, b.String(), nil); err != nil {
		log.Error().Err(err).Msg("Failed to post weekly summary")
	}
}

// sendReminder mentions the notification role in the alert channel and
// DMs every signed-up member whose preferences allow it.
func (s *Scheduler) sendReminder(r service.Reminder) {
	content := fmt.Sprintf("⏰ %s plays <t:%d:F> (<t:%d:R>)",
		r.Team.DisplayName(), r.At.Unix(), r.At.Unix())
	if roleID := s.cfg.Discord.NotificationRoleID; roleID != "" {
		content = fmt.Sprintf("<@&%s> %s", roleID, content)
	}
	if err := s.announcer.Announce(s.cfg.Discord.AlertChannelID, content, nil); err != nil {
		log.Error().Err(err).Msg("Failed to post reminder")
	}

	now := time.Now()
	cycle := s.lifecycle.Current()
	for _, userID := range cycle.Rosters[r.Team] {
		if !s.notify.ShouldNotify(userID, model.NotificationChannelDM, now) {
			continue
		}
		msg := fmt.Sprintf("⏰ Reminder: %s plays <t:%d:F>. See you there, %s!",
			r.Team.DisplayName(), r.At.Unix(), s.igns.ResolveDisplay(userID, "commander"))
		if err := s.announcer.SendDM(userID, msg); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Could not DM reminder")
		}
	}
	log.Info().
		Str("team", string(r.Team)).
		Dur("offset", r.Offset).
		Time("event_at", r.At).
		Msg("Reminder dispatched")
}
