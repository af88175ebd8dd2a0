package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msomdec/revtrack/internal/domain"
	"github.com/msomdec/revtrack/internal/service"
)

type fakeDueRepo struct {
	domain.QuestionRepository

	due      []domain.DueQuestion
	err      error
	from, to time.Time
	calls    int
}

func (r *fakeDueRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]domain.DueQuestion, error) {
	r.calls++
	r.from, r.to = from, to
	return r.due, r.err
}

type sentMessage struct {
	to, subject, text, html string
}

type fakeSink struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (s *fakeSink) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to: to, subject: subject, text: textBody, html: htmlBody})
	if s.failTo[to] {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (s *fakeSink) sentTo(to string) []sentMessage {
	var out []sentMessage
	for _, m := range s.sent {
		if m.to == to {
			out = append(out, m)
		}
	}
	return out
}

func dueQuestion(userID int64, email, name, title string) domain.DueQuestion {
	return domain.DueQuestion{
		Question:   domain.Question{ID: title, UserID: userID, Title: title},
		OwnerEmail: email,
		OwnerName:  name,
	}
}

func newReminderService(repo domain.QuestionRepository, sink service.ReminderSink, now time.Time, loc *time.Location) *service.ReminderService {
	return service.NewReminderService(repo, sink, service.ReminderServiceConfig{
		Location: loc,
		Now:      func() time.Time { return now },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSendDueReminders_GroupsByUser(t *testing.T) {
	repo := &fakeDueRepo{due: []domain.DueQuestion{
		dueQuestion(1, "alice@example.com", "Alice", "Two Sum"),
		dueQuestion(2, "bob@example.com", "Bob", "Merge Intervals"),
		dueQuestion(1, "alice@example.com", "Alice", "Valid Anagram"),
	}}
	sink := &fakeSink{}
	svc := newReminderService(repo, sink, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), time.UTC)

	report, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, service.ReminderReport{Due: 3, Notified: 2}, report)
	require.Len(t, sink.sent, 2)

	alice := sink.sentTo("alice@example.com")
	require.Len(t, alice, 1)
	assert.Equal(t, service.ReminderSubject, alice[0].subject)
	assert.Contains(t, alice[0].text, "Hi Alice,")
	assert.Contains(t, alice[0].text, "You have 2 question(s)")
	assert.Contains(t, alice[0].text, "- Two Sum")
	assert.Contains(t, alice[0].text, "- Valid Anagram")
	assert.NotContains(t, alice[0].text, "Merge Intervals")
	assert.Contains(t, alice[0].html, "<li>Two Sum</li>")

	bob := sink.sentTo("bob@example.com")
	require.Len(t, bob, 1)
	assert.Contains(t, bob[0].text, "You have 1 question(s)")
	assert.Contains(t, bob[0].text, "- Merge Intervals")
	assert.NotContains(t, bob[0].text, "Two Sum")
}

func TestSendDueReminders_FailureIsIsolated(t *testing.T) {
	repo := &fakeDueRepo{due: []domain.DueQuestion{
		dueQuestion(1, "alice@example.com", "Alice", "Two Sum"),
		dueQuestion(2, "bob@example.com", "Bob", "Merge Intervals"),
		dueQuestion(3, "carol@example.com", "Carol", "Word Ladder"),
	}}
	sink := &fakeSink{failTo: map[string]bool{"alice@example.com": true}}
	svc := newReminderService(repo, sink, time.Now(), time.UTC)

	report, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Notified)
	assert.Len(t, sink.sentTo("alice@example.com"), 1)
	assert.Len(t, sink.sentTo("bob@example.com"), 1)
	assert.Len(t, sink.sentTo("carol@example.com"), 1)
}

func TestSendDueReminders_EmptyDayIsNoop(t *testing.T) {
	repo := &fakeDueRepo{}
	sink := &fakeSink{}
	svc := newReminderService(repo, sink, time.Now(), time.UTC)

	report, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, service.ReminderReport{}, report)
	assert.Empty(t, sink.sent)
	assert.Equal(t, 1, repo.calls)
}

func TestSendDueReminders_SkipsUnresolvedOwner(t *testing.T) {
	repo := &fakeDueRepo{due: []domain.DueQuestion{
		dueQuestion(1, "alice@example.com", "Alice", "Two Sum"),
		dueQuestion(99, "", "", "Orphaned"),
	}}
	sink := &fakeSink{}
	svc := newReminderService(repo, sink, time.Now(), time.UTC)

	report, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, service.ReminderReport{Due: 2, Notified: 1, Skipped: 1}, report)
	require.Len(t, sink.sent, 1)
	assert.NotContains(t, sink.sent[0].text, "Orphaned")
}

func TestSendDueReminders_RepositoryError(t *testing.T) {
	repo := &fakeDueRepo{err: errors.New("connection reset")}
	sink := &fakeSink{}
	svc := newReminderService(repo, sink, time.Now(), time.UTC)

	_, err := svc.SendDueReminders(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.sent)
}

func TestSendDueReminders_WindowInLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	repo := &fakeDueRepo{}
	// 02:00 UTC is 07:30 IST on the same day.
	now := time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC)
	svc := newReminderService(repo, &fakeSink{}, now, loc)

	_, err = svc.SendDueReminders(context.Background())
	require.NoError(t, err)

	assert.True(t, repo.from.Equal(time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)), "from = %v", repo.from)
	assert.True(t, repo.to.Equal(time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)), "to = %v", repo.to)
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantLen   time.Duration
	}{
		{
			name:      "ordinary day",
			now:       time.Date(2026, 6, 10, 15, 0, 0, 0, loc),
			wantStart: time.Date(2026, 6, 10, 0, 0, 0, 0, loc),
			wantLen:   24 * time.Hour,
		},
		{
			name:      "late evening utc is previous local day",
			now:       time.Date(2026, 6, 11, 2, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 6, 10, 0, 0, 0, 0, loc),
			wantLen:   24 * time.Hour,
		},
		{
			name:      "spring forward",
			now:       time.Date(2026, 3, 8, 12, 0, 0, 0, loc),
			wantStart: time.Date(2026, 3, 8, 0, 0, 0, 0, loc),
			wantLen:   23 * time.Hour,
		},
		{
			name:      "fall back",
			now:       time.Date(2026, 11, 1, 12, 0, 0, 0, loc),
			wantStart: time.Date(2026, 11, 1, 0, 0, 0, 0, loc),
			wantLen:   25 * time.Hour,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := service.DayWindow(tc.now, loc)
			assert.True(t, start.Equal(tc.wantStart), "start = %v", start)
			assert.Equal(t, tc.wantLen, end.Sub(start))
		})
	}
}

func TestSendDueReminders_EscapesUserContent(t *testing.T) {
	repo := &fakeDueRepo{due: []domain.DueQuestion{
		dueQuestion(1, "alice@example.com", "<i>Alice</i>", "<img src=x onerror=alert(1)>"),
	}}
	sink := &fakeSink{}
	svc := newReminderService(repo, sink, time.Now(), time.UTC)

	_, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.sent, 1)

	assert.NotContains(t, sink.sent[0].html, "<img")
	assert.NotContains(t, sink.sent[0].html, "<i>Alice</i>")
	assert.Contains(t, sink.sent[0].html, "&lt;img")
}

func TestSendDueReminders_StoredQuestions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	users := map[string]*domain.User{}
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		u := &domain.User{Email: strings.ToLower(name) + "@example.com", DisplayName: name, PasswordHash: "hash"}
		require.NoError(t, db.Users().Create(ctx, u))
		users[name] = u
	}

	store := func(owner, title string, due time.Time) {
		t.Helper()
		require.NoError(t, db.Questions().Create(ctx, &domain.Question{
			UserID:           users[owner].ID,
			Title:            title,
			DateSolved:       now.AddDate(0, 0, -7),
			NextRevisionDate: due,
		}))
	}
	store("Alice", "Two Sum", now.Add(-2*time.Hour))
	store("Alice", "Valid Anagram", now.Add(10*time.Hour))
	store("Bob", "Merge Intervals", now)
	// Carol's only question is due tomorrow.
	store("Carol", "Word Ladder", now.AddDate(0, 0, 1))

	sink := &fakeSink{}
	svc := newReminderService(db.Questions(), sink, now, time.UTC)

	report, err := svc.SendDueReminders(ctx)
	require.NoError(t, err)

	assert.Equal(t, service.ReminderReport{Due: 3, Notified: 2}, report)
	require.Len(t, sink.sent, 2)

	alice := sink.sentTo("alice@example.com")
	require.Len(t, alice, 1)
	assert.Contains(t, alice[0].text, "You have 2 question(s)")

	bob := sink.sentTo("bob@example.com")
	require.Len(t, bob, 1)
	assert.Contains(t, bob[0].text, "You have 1 question(s)")

	assert.Empty(t, sink.sentTo("carol@example.com"))
}
