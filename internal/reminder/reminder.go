// Package reminder runs the castle blood-timer: a single persistent timer
// per deployment that posts escalating reminders as the castle heart
// approaches empty.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/masquerade/internal/models"
)

// castleDurations maps castle heart level to days of blood a full heart
// holds.
var castleDurations = map[int]int{
	5: 13,
	4: 11,
	3: 8,
	2: 5,
	1: 3,
}

// timerID is the fixed document ID: one blood timer per deployment.
const timerID = "blood_timer"

// defaultSchedule checks the timer twice a day.
const defaultSchedule = "0 */12 * * *"

// TimerStore persists the blood timer.
type TimerStore interface {
	GetTimer(ctx context.Context) (*models.BloodTimer, error)
	SaveTimer(ctx context.Context, timer *models.BloodTimer) error
}

// Sender posts reminder messages to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Service owns the blood timer and its reminder schedule.
type Service struct {
	store    TimerStore
	sender   Sender
	schedule string
	mention  string

	// For testing: injectable clock.
	now func() time.Time
}

// Opts holds parameters for creating a reminder Service.
type Opts struct {
	Store    TimerStore
	Sender   Sender
	Schedule string // 5-field cron expression, defaults to every 12 hours
	Mention  string // prepended to reminder messages, e.g. a role mention
}

// New creates a reminder Service.
func New(opts Opts) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("reminder: store is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("reminder: sender is required")
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("reminder: parse schedule %q: %w", schedule, err)
	}

	return &Service{
		store:    opts.Store,
		sender:   opts.Sender,
		schedule: schedule,
		mention:  opts.Mention,
		now:      time.Now,
	}, nil
}

// SetTimer starts (or restarts) the blood timer for a channel, computing the
// expiry from the castle level's full-heart duration.
func (s *Service) SetTimer(ctx context.Context, channelID string, castleLevel int) (*models.BloodTimer, error) {
	days, ok := castleDurations[castleLevel]
	if !ok {
		return nil, fmt.Errorf("reminder: castle level must be 1-5, got %d", castleLevel)
	}

	timer := &models.BloodTimer{
		ID:          timerID,
		EndsAt:      s.now().UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339),
		ChannelID:   channelID,
		CastleLevel: castleLevel,
	}
	if err := s.store.SaveTimer(ctx, timer); err != nil {
		return nil, fmt.Errorf("reminder: save timer: %w", err)
	}
	log.Printf("reminder: blood timer set, level %d castle, %d days", castleLevel, days)
	return timer, nil
}

// Run drives the reminder schedule. It blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	var timer *time.Timer
	if d := nextCronDuration(s.schedule); d > 0 {
		timer = time.NewTimer(d)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(timer):
			s.checkOnce(ctx)
			if d := nextCronDuration(s.schedule); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// checkOnce loads the timer and posts a reminder if the blood is low enough
// for the castle level.
func (s *Service) checkOnce(ctx context.Context) {
	timer, err := s.store.GetTimer(ctx)
	if err != nil {
		log.Printf("reminder: load timer: %v", err)
		return
	}
	if timer == nil {
		return
	}

	endsAt, err := timer.EndsAtTime()
	if err != nil {
		log.Printf("reminder: parse timer expiry %q: %v", timer.EndsAt, err)
		return
	}

	remaining := endsAt.Sub(s.now())
	if !shouldRemind(timer.CastleLevel, remaining) {
		return
	}

	if err := s.sender.Send(ctx, timer.ChannelID, s.message(timer.CastleLevel, remaining)); err != nil {
		log.Printf("reminder: send reminder: %v", err)
	}
}

// shouldRemind decides whether the remaining blood warrants a reminder.
// Higher-level castles burn more blood, so they get earlier warnings.
func shouldRemind(level int, remaining time.Duration) bool {
	if remaining <= 0 {
		return true
	}
	daysLeft := int(remaining.Hours() / 24)
	switch {
	case level <= 1:
		return daysLeft < 1
	case level == 2:
		return daysLeft <= 1
	default:
		return daysLeft <= 2
	}
}

func (s *Service) message(level int, remaining time.Duration) string {
	prefix := ""
	if s.mention != "" {
		prefix = s.mention + " "
	}
	if remaining <= 0 {
		return fmt.Sprintf("%s🩸 The level %d castle heart has run dry! Feed it now.", prefix, level)
	}
	daysLeft := int(remaining.Hours() / 24)
	if daysLeft < 1 {
		hoursLeft := int(remaining.Hours())
		return fmt.Sprintf("%s🦇 The level %d castle heart has about %d hour(s) of blood left. Top it up soon.", prefix, level, hoursLeft)
	}
	return fmt.Sprintf("%s🦇 The level %d castle heart has about %d day(s) of blood left. Top it up soon.", prefix, level, daysLeft)
}
