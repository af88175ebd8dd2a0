package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/msomdec/revtrack/internal/domain"
)

// EditPolicy controls how an edit may touch a question's due date.
type EditPolicy struct {
	// AllowDueDateOverride lets an edit write NextRevisionDate directly.
	// When false, a supplied date is rejected and a supplied RevisionCount
	// recomputes the due date from the schedule.
	AllowDueDateOverride bool
}

// QuestionServiceConfig holds the optional collaborators of QuestionService.
type QuestionServiceConfig struct {
	Schedule *RevisionSchedule
	Policy   EditPolicy
	// Location defines "today" for statistics. Defaults to UTC.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// QuestionService handles question CRUD and revision bookkeeping.
type QuestionService struct {
	questions domain.QuestionRepository
	schedule  *RevisionSchedule
	policy    EditPolicy
	loc       *time.Location
	now       func() time.Time
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions domain.QuestionRepository, cfg QuestionServiceConfig) *QuestionService {
	s := &QuestionService{
		questions: questions,
		schedule:  cfg.Schedule,
		policy:    cfg.Policy,
		loc:       cfg.Location,
		now:       cfg.Now,
	}
	if s.schedule == nil {
		s.schedule = DefaultRevisionSchedule()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateQuestionInput carries the user-supplied fields of a new question.
type CreateQuestionInput struct {
	Title            string            `validate:"required,max=200"`
	Platform         string            `validate:"max=100"`
	Difficulty       domain.Difficulty `validate:"omitempty,oneof=Easy Medium Hard"`
	Topic            string            `validate:"max=100"`
	TimeTakenMinutes *int              `validate:"omitnil,gte=0" label:"time taken"`
	Notes            string            `validate:"max=10000"`
	DateSolved       *time.Time
}

// UpdateQuestionInput carries a partial edit. Nil fields are left unchanged.
type UpdateQuestionInput struct {
	Title            *string            `validate:"omitnil,min=1,max=200"`
	Platform         *string            `validate:"omitnil,max=100"`
	Difficulty       *domain.Difficulty `validate:"omitnil,oneof=Easy Medium Hard"`
	Topic            *string            `validate:"omitnil,max=100"`
	TimeTakenMinutes *int               `validate:"omitnil,gte=0" label:"time taken"`
	Notes            *string            `validate:"omitnil,max=10000"`
	DateSolved       *time.Time
	RevisionCount    *int `validate:"omitnil,gte=0" label:"revision count"`
	NextRevisionDate *time.Time
}

// Create validates input and stores a new question owned by userID. The
// revision count starts at zero and the first due date comes from the
// schedule.
func (s *QuestionService) Create(ctx context.Context, userID int64, input CreateQuestionInput) (*domain.Question, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Platform = strings.TrimSpace(input.Platform)
	input.Topic = strings.TrimSpace(input.Topic)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	solved := now
	if input.DateSolved != nil {
		solved = *input.DateSolved
	}

	q := &domain.Question{
		UserID:           userID,
		Title:            input.Title,
		Platform:         input.Platform,
		Difficulty:       input.Difficulty,
		Topic:            input.Topic,
		TimeTakenMinutes: input.TimeTakenMinutes,
		Notes:            input.Notes,
		DateSolved:       solved,
		RevisionCount:    0,
		NextRevisionDate: s.schedule.NextDueDate(0, now),
	}

	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Get returns one of the user's questions.
func (s *QuestionService) Get(ctx context.Context, userID int64, id string) (*domain.Question, error) {
	return s.questions.GetByID(ctx, id, userID)
}

// List returns the user's questions, soonest due first.
func (s *QuestionService) List(ctx context.Context, userID int64) ([]domain.Question, error) {
	return s.questions.ListByUser(ctx, userID)
}

// MarkRevised records one more revision and moves the due date along the
// schedule.
func (s *QuestionService) MarkRevised(ctx context.Context, userID int64, id string) (*domain.Question, error) {
	q, err := s.questions.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	q.RevisionCount++
	q.NextRevisionDate = s.schedule.NextDueDate(q.RevisionCount, s.now())

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// Update merges the supplied fields into the user's question. How the due
// date may change is governed by the EditPolicy.
func (s *QuestionService) Update(ctx context.Context, userID int64, id string, input UpdateQuestionInput) (*domain.Question, error) {
	trimPtr(input.Title)
	trimPtr(input.Platform)
	trimPtr(input.Topic)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.NextRevisionDate != nil && !s.policy.AllowDueDateOverride {
		return nil, fmt.Errorf("%w: next revision date is derived from the revision count and cannot be set directly", domain.ErrInvalidInput)
	}

	q, err := s.questions.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		q.Title = *input.Title
	}
	if input.Platform != nil {
		q.Platform = *input.Platform
	}
	if input.Difficulty != nil {
		q.Difficulty = *input.Difficulty
	}
	if input.Topic != nil {
		q.Topic = *input.Topic
	}
	if input.TimeTakenMinutes != nil {
		q.TimeTakenMinutes = input.TimeTakenMinutes
	}
	if input.Notes != nil {
		q.Notes = *input.Notes
	}
	if input.DateSolved != nil {
		q.DateSolved = *input.DateSolved
	}
	if input.RevisionCount != nil {
		q.RevisionCount = *input.RevisionCount
		if input.NextRevisionDate == nil {
			q.NextRevisionDate = s.schedule.NextDueDate(q.RevisionCount, s.now())
		}
	}
	if input.NextRevisionDate != nil {
		q.NextRevisionDate = *input.NextRevisionDate
	}

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// Delete removes the user's question. Deleting a question that does not
// exist, or that belongs to someone else, succeeds without effect.
func (s *QuestionService) Delete(ctx context.Context, userID int64, id string) error {
	err := s.questions.Delete(ctx, id, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// DefaultTopic is the bucket used for questions without a topic.
const DefaultTopic = "General"

const maxTopTopics = 10

// TopicCount is the number of questions logged under one topic.
type TopicCount struct {
	Topic string
	Count int
}

// QuestionStats summarises a user's question log.
type QuestionStats struct {
	Total        int
	ByDifficulty map[domain.Difficulty]int
	TopTopics    []TopicCount
	// DueNow counts questions due today or earlier.
	DueNow int
}

// Stats computes totals per difficulty and topic for the user.
func (s *QuestionService) Stats(ctx context.Context, userID int64) (*QuestionStats, error) {
	questions, err := s.questions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	_, endOfToday := DayWindow(s.now(), s.loc)

	stats := &QuestionStats{
		Total: len(questions),
		ByDifficulty: map[domain.Difficulty]int{
			domain.DifficultyEasy:   0,
			domain.DifficultyMedium: 0,
			domain.DifficultyHard:   0,
			domain.DifficultyUnset:  0,
		},
	}
	topics := make(map[string]int)
	for _, q := range questions {
		stats.ByDifficulty[q.Difficulty]++

		topic := q.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		topics[topic]++

		if q.NextRevisionDate.Before(endOfToday) {
			stats.DueNow++
		}
	}

	for topic, n := range topics {
		stats.TopTopics = append(stats.TopTopics, TopicCount{Topic: topic, Count: n})
	}
	slices.SortFunc(stats.TopTopics, func(a, b TopicCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Topic, b.Topic)
	})
	if len(stats.TopTopics) > maxTopTopics {
		stats.TopTopics = stats.TopTopics[:maxTopTopics]
	}

	return stats, nil
}

var exportHeader = []any{
	"Title", "Platform", "Difficulty", "Topic", "Time Taken (min)",
	"Date Solved", "Revisions", "Next Revision", "Notes",
}

// Export writes the user's questions to w as an xlsx workbook, one row per
// question in due-date order. Dates are rendered in the service location.
func (s *QuestionService) Export(ctx context.Context, userID int64, w io.Writer) error {
	questions, err := s.questions.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, q := range questions {
		var minutes any
		if q.TimeTakenMinutes != nil {
			minutes = *q.TimeTakenMinutes
		}
		row := []any{
			q.Title,
			q.Platform,
			string(q.Difficulty),
			q.Topic,
			minutes,
			q.DateSolved.In(s.loc).Format(time.DateOnly),
			q.RevisionCount,
			q.NextRevisionDate.In(s.loc).Format(time.DateOnly),
			q.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
