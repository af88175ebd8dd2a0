package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/msomdec/revtrack/internal/domain"
	"github.com/msomdec/revtrack/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}

// AuthResponseDTO is returned by register and login.
type AuthResponseDTO struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// QuestionDTO is the JSON representation of a question.
type QuestionDTO struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Platform         string `json:"platform"`
	Difficulty       string `json:"difficulty"`
	Topic            string `json:"topic"`
	TimeTakenMinutes *int   `json:"timeTakenMinutes"`
	Notes            string `json:"notes"`
	DateSolved       string `json:"dateSolved"`
	RevisionCount    int    `json:"revisionCount"`
	NextRevisionDate string `json:"nextRevisionDate"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func toQuestionDTO(q *domain.Question) QuestionDTO {
	return QuestionDTO{
		ID:               q.ID,
		Title:            q.Title,
		Platform:         q.Platform,
		Difficulty:       string(q.Difficulty),
		Topic:            q.Topic,
		TimeTakenMinutes: q.TimeTakenMinutes,
		Notes:            q.Notes,
		DateSolved:       q.DateSolved.Format(time.RFC3339),
		RevisionCount:    q.RevisionCount,
		NextRevisionDate: q.NextRevisionDate.Format(time.RFC3339),
		CreatedAt:        q.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        q.UpdatedAt.Format(time.RFC3339),
	}
}

func toQuestionDTOs(questions []domain.Question) []QuestionDTO {
	dtos := make([]QuestionDTO, len(questions))
	for i := range questions {
		dtos[i] = toQuestionDTO(&questions[i])
	}
	return dtos
}

// TopicCountDTO is one entry of the topic breakdown.
type TopicCountDTO struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// StatsDTO is the JSON representation of question statistics. Questions
// without a difficulty are counted under "Unset".
type StatsDTO struct {
	Total        int             `json:"total"`
	ByDifficulty map[string]int  `json:"byDifficulty"`
	TopTopics    []TopicCountDTO `json:"topTopics"`
	DueNow       int             `json:"dueNow"`
}

func toStatsDTO(s *service.QuestionStats) StatsDTO {
	dto := StatsDTO{
		Total:        s.Total,
		ByDifficulty: make(map[string]int, len(s.ByDifficulty)),
		TopTopics:    make([]TopicCountDTO, len(s.TopTopics)),
		DueNow:       s.DueNow,
	}
	for d, n := range s.ByDifficulty {
		key := string(d)
		if d == domain.DifficultyUnset {
			key = "Unset"
		}
		dto.ByDifficulty[key] = n
	}
	for i, tc := range s.TopTopics {
		dto.TopTopics[i] = TopicCountDTO{Topic: tc.Topic, Count: tc.Count}
	}
	return dto
}

// fieldError reports a request field whose JSON value has the right shape
// but cannot be interpreted. Its message is safe to show to the client.
type fieldError struct {
	msg string
}

func (e *fieldError) Error() string { return e.msg }

// dateValue accepts either an RFC 3339 timestamp or a bare YYYY-MM-DD date,
// which is what HTML date inputs submit.
type dateValue struct {
	time.Time
}

func (d *dateValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return &fieldError{msg: fmt.Sprintf("invalid date %q: use YYYY-MM-DD", s)}
}

func (d *dateValue) ptr() *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

// minutesValue accepts a JSON number or a numeric string, which is what HTML
// number inputs submit. An empty string or null leaves the value unset.
type minutesValue struct {
	n *int
}

func (m *minutesValue) UnmarshalJSON(b []byte) error {
	m.n = nil
	raw := bytes.TrimSpace(b)
	if string(raw) == "null" {
		return nil
	}

	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return &fieldError{msg: fmt.Sprintf("time taken must be a whole number of minutes, got %s", raw)}
	}
	m.n = &n
	return nil
}

type createQuestionRequest struct {
	Title            string       `json:"title"`
	Platform         string       `json:"platform"`
	Difficulty       string       `json:"difficulty"`
	Topic            string       `json:"topic"`
	TimeTakenMinutes minutesValue `json:"timeTakenMinutes"`
	Notes            string       `json:"notes"`
	DateSolved       *dateValue   `json:"dateSolved"`
}

func (r createQuestionRequest) toInput() service.CreateQuestionInput {
	return service.CreateQuestionInput{
		Title:            r.Title,
		Platform:         r.Platform,
		Difficulty:       domain.Difficulty(r.Difficulty),
		Topic:            r.Topic,
		TimeTakenMinutes: r.TimeTakenMinutes.n,
		Notes:            r.Notes,
		DateSolved:       r.DateSolved.ptr(),
	}
}

// updateQuestionRequest is a partial edit. Absent fields, and an empty
// timeTakenMinutes, leave the stored value unchanged.
type updateQuestionRequest struct {
	Title            *string      `json:"title"`
	Platform         *string      `json:"platform"`
	Difficulty       *string      `json:"difficulty"`
	Topic            *string      `json:"topic"`
	TimeTakenMinutes minutesValue `json:"timeTakenMinutes"`
	Notes            *string      `json:"notes"`
	DateSolved       *dateValue   `json:"dateSolved"`
	RevisionCount    *int         `json:"revisionCount"`
	NextRevisionDate *dateValue   `json:"nextRevisionDate"`
}

func (r updateQuestionRequest) toInput() service.UpdateQuestionInput {
	input := service.UpdateQuestionInput{
		Title:            r.Title,
		Platform:         r.Platform,
		Topic:            r.Topic,
		TimeTakenMinutes: r.TimeTakenMinutes.n,
		Notes:            r.Notes,
		DateSolved:       r.DateSolved.ptr(),
		RevisionCount:    r.RevisionCount,
		NextRevisionDate: r.NextRevisionDate.ptr(),
	}
	if r.Difficulty != nil {
		d := domain.Difficulty(*r.Difficulty)
		input.Difficulty = &d
	}
	return input
}
