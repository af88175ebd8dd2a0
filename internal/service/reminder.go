package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/revtrack/internal/domain"
)

// ReminderSink delivers a rendered reminder to one recipient.
type ReminderSink interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// ReminderReport summarises one reminder run.
type ReminderReport struct {
	// Due is the number of questions due in the window.
	Due int
	// Notified is the number of users a reminder was delivered to.
	Notified int
	// Failed is the number of users whose delivery failed.
	Failed int
	// Skipped is the number of due questions whose owner could not be resolved.
	Skipped int
}

// ReminderServiceConfig holds the optional collaborators of ReminderService.
type ReminderServiceConfig struct {
	// Location defines the calendar day a run covers. Defaults to UTC.
	Location *time.Location
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
	// Signature names the sender in the message sign-off.
	Signature string
}

// ReminderService emails each user the questions due for revision today.
type ReminderService struct {
	questions domain.QuestionRepository
	sink      ReminderSink
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
	signature string
}

// NewReminderService creates a new ReminderService.
func NewReminderService(questions domain.QuestionRepository, sink ReminderSink, cfg ReminderServiceConfig) *ReminderService {
	s := &ReminderService{
		questions: questions,
		sink:      sink,
		loc:       cfg.Location,
		now:       cfg.Now,
		logger:    cfg.Logger,
		signature: cfg.Signature,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.signature == "" {
		s.signature = "DSA Revision Tracker"
	}
	return s
}

// DayWindow returns the half-open interval [start of day, start of next day)
// containing now, as observed in loc.
func DayWindow(now time.Time, loc *time.Location) (start, end time.Time) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

type reminderGroup struct {
	email  string
	name   string
	titles []string
}

// SendDueReminders sends one message per user listing the questions due
// today. Questions whose owner cannot be resolved are skipped. A failed
// delivery is logged and counted without stopping the run. Only a failure to
// load the due questions is returned as an error.
func (s *ReminderService) SendDueReminders(ctx context.Context) (ReminderReport, error) {
	var report ReminderReport

	start, end := DayWindow(s.now(), s.loc)
	due, err := s.questions.ListDueBetween(ctx, start, end)
	if err != nil {
		return report, fmt.Errorf("list due questions: %w", err)
	}
	report.Due = len(due)

	if len(due) == 0 {
		s.logger.Info("no questions due for revision", "day", start.Format(time.DateOnly))
		return report, nil
	}

	var order []int64
	groups := make(map[int64]*reminderGroup)
	for _, q := range due {
		if q.OwnerEmail == "" {
			report.Skipped++
			continue
		}
		g, ok := groups[q.UserID]
		if !ok {
			g = &reminderGroup{email: q.OwnerEmail, name: q.OwnerName}
			groups[q.UserID] = g
			order = append(order, q.UserID)
		}
		g.titles = append(g.titles, q.Title)
	}

	for _, userID := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		g := groups[userID]
		if err := s.notify(ctx, g); err != nil {
			report.Failed++
			s.logger.Error("send reminder", "user_id", userID, "to", g.email, "error", err)
			continue
		}
		report.Notified++
	}

	s.logger.Info("reminders sent",
		"day", start.Format(time.DateOnly),
		"due", report.Due,
		"notified", report.Notified,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (s *ReminderService) notify(ctx context.Context, g *reminderGroup) error {
	msg, err := RenderReminder(ctx, g.name, g.titles, s.signature)
	if err != nil {
		return err
	}
	return s.sink.Send(ctx, g.email, msg.Subject, msg.Text, msg.HTML)
}
