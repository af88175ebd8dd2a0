package domain

import (
	"context"
	"time"
)

// Difficulty is the self-assessed difficulty of a practice question.
type Difficulty string

const (
	DifficultyUnset  Difficulty = ""
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is one of the known difficulties or unset.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyUnset, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is a logged practice problem together with its revision state.
// NextRevisionDate is derived from RevisionCount by the revision schedule.
type Question struct {
	ID               string
	UserID           int64
	Title            string
	Platform         string
	Difficulty       Difficulty
	Topic            string
	TimeTakenMinutes *int
	Notes            string
	DateSolved       time.Time
	RevisionCount    int
	NextRevisionDate time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DueQuestion is a question joined with its owner's contact details.
// OwnerEmail is empty when the owner reference could not be resolved.
type DueQuestion struct {
	Question
	OwnerEmail string
	OwnerName  string
}

// QuestionRepository defines persistence operations for questions.
// Lookups that take a userID are scoped to that owner; a question owned by
// someone else is reported as ErrNotFound.
type QuestionRepository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id string, userID int64) (*Question, error)
	ListByUser(ctx context.Context, userID int64) ([]Question, error)
	Update(ctx context.Context, q *Question) error
	Delete(ctx context.Context, id string, userID int64) error
	// ListDueBetween returns every question with from <= next_revision_date < to,
	// across all users, ordered by owner and due date.
	ListDueBetween(ctx context.Context, from, to time.Time) ([]DueQuestion, error)
}
