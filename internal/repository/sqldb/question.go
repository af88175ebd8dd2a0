package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/msomdec/revtrack/internal/domain"
)

// QuestionRepository implements domain.QuestionRepository.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new QuestionRepository bound to db.
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db.SqlDB}
}

type questionRow struct {
	ID               string        `db:"id"`
	UserID           int64         `db:"user_id"`
	Title            string        `db:"title"`
	Platform         string        `db:"platform"`
	Difficulty       string        `db:"difficulty"`
	Topic            string        `db:"topic"`
	TimeTakenMinutes sql.NullInt64 `db:"time_taken_minutes"`
	Notes            string        `db:"notes"`
	DateSolved       time.Time     `db:"date_solved"`
	RevisionCount    int           `db:"revision_count"`
	NextRevisionDate time.Time     `db:"next_revision_date"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

type dueQuestionRow struct {
	questionRow
	OwnerEmail sql.NullString `db:"owner_email"`
	OwnerName  sql.NullString `db:"owner_name"`
}

func (r questionRow) toDomain() domain.Question {
	q := domain.Question{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Platform:         r.Platform,
		Difficulty:       domain.Difficulty(r.Difficulty),
		Topic:            r.Topic,
		Notes:            r.Notes,
		DateSolved:       r.DateSolved,
		RevisionCount:    r.RevisionCount,
		NextRevisionDate: r.NextRevisionDate,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.TimeTakenMinutes.Valid {
		minutes := int(r.TimeTakenMinutes.Int64)
		q.TimeTakenMinutes = &minutes
	}
	return q
}

func nullMinutes(m *int) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*m), Valid: true}
}

const questionColumns = `q.id, q.user_id, q.title, q.platform, q.difficulty, q.topic,
	q.time_taken_minutes, q.notes, q.date_solved, q.revision_count,
	q.next_revision_date, q.created_at, q.updated_at`

// Create inserts q, assigning a fresh UUID when q.ID is empty.
func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := dbTime(time.Now())
	q.DateSolved = dbTime(q.DateSolved)
	q.NextRevisionDate = dbTime(q.NextRevisionDate)

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO questions (id, user_id, title, platform, difficulty, topic,
		 time_taken_minutes, notes, date_solved, revision_count, next_revision_date,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.UserID, q.Title, q.Platform, string(q.Difficulty), q.Topic,
		nullMinutes(q.TimeTakenMinutes), q.Notes, q.DateSolved, q.RevisionCount,
		q.NextRevisionDate, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	q.CreatedAt = now
	q.UpdatedAt = now
	return nil
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string, userID int64) (*domain.Question, error) {
	var row questionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(
		`SELECT `+questionColumns+` FROM questions q WHERE q.id = ? AND q.user_id = ?`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get question by id: %w", err)
	}
	q := row.toDomain()
	return &q, nil
}

func (r *QuestionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Question, error) {
	var rows []questionRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+questionColumns+` FROM questions q
		 WHERE q.user_id = ?
		 ORDER BY q.next_revision_date ASC, q.created_at ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	questions := make([]domain.Question, len(rows))
	for i, row := range rows {
		questions[i] = row.toDomain()
	}
	return questions, nil
}

// Update overwrites every mutable column of q. The owner is part of the
// WHERE clause, so a question belonging to another user is ErrNotFound.
func (r *QuestionRepository) Update(ctx context.Context, q *domain.Question) error {
	now := dbTime(time.Now())
	q.DateSolved = dbTime(q.DateSolved)
	q.NextRevisionDate = dbTime(q.NextRevisionDate)

	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE questions SET title = ?, platform = ?, difficulty = ?, topic = ?,
		 time_taken_minutes = ?, notes = ?, date_solved = ?, revision_count = ?,
		 next_revision_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`),
		q.Title, q.Platform, string(q.Difficulty), q.Topic,
		nullMinutes(q.TimeTakenMinutes), q.Notes, q.DateSolved, q.RevisionCount,
		q.NextRevisionDate, now, q.ID, q.UserID,
	)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	q.UpdatedAt = now
	return nil
}

func (r *QuestionRepository) Delete(ctx context.Context, id string, userID int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM questions WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *QuestionRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]domain.DueQuestion, error) {
	var rows []dueQuestionRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+questionColumns+`, u.email AS owner_email, u.display_name AS owner_name
		 FROM questions q
		 LEFT JOIN users u ON u.id = q.user_id
		 WHERE q.next_revision_date >= ? AND q.next_revision_date < ?
		 ORDER BY q.user_id, q.next_revision_date`), dbTime(from), dbTime(to))
	if err != nil {
		return nil, fmt.Errorf("list due questions: %w", err)
	}

	due := make([]domain.DueQuestion, len(rows))
	for i, row := range rows {
		due[i] = domain.DueQuestion{
			Question:   row.questionRow.toDomain(),
			OwnerEmail: row.OwnerEmail.String,
			OwnerName:  row.OwnerName.String,
		}
	}
	return due, nil
}
