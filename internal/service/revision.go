package service

import (
	"fmt"
	"time"

	"github.com/msomdec/revtrack/internal/domain"
)

// DefaultRevisionIntervals is the spacing, in days, between successive
// revisions of a question.
var DefaultRevisionIntervals = []int{1, 7, 30, 90, 180}

// RevisionSchedule maps a revision count to the next due date.
type RevisionSchedule struct {
	intervals []int
}

// NewRevisionSchedule validates intervals and returns a schedule over a copy
// of them. The table must be non-empty, positive and strictly ascending.
func NewRevisionSchedule(intervals []int) (*RevisionSchedule, error) {
	if len(intervals) == 0 {
		return nil, fmt.Errorf("%w: revision intervals must not be empty", domain.ErrInvalidInput)
	}
	for i, days := range intervals {
		if days <= 0 {
			return nil, fmt.Errorf("%w: revision interval %d must be positive, got %d", domain.ErrInvalidInput, i, days)
		}
		if i > 0 && days <= intervals[i-1] {
			return nil, fmt.Errorf("%w: revision intervals must be strictly ascending", domain.ErrInvalidInput)
		}
	}

	return &RevisionSchedule{intervals: append([]int(nil), intervals...)}, nil
}

// DefaultRevisionSchedule returns a schedule over DefaultRevisionIntervals.
func DefaultRevisionSchedule() *RevisionSchedule {
	return &RevisionSchedule{intervals: append([]int(nil), DefaultRevisionIntervals...)}
}

// Intervals returns a copy of the interval table.
func (s *RevisionSchedule) Intervals() []int {
	return append([]int(nil), s.intervals...)
}

// NextDueDate returns now advanced by the interval for revisionCount. Counts
// below zero use the first interval and counts past the end use the last.
// Days are calendar days in now's location, so the wall-clock time survives
// DST transitions.
func (s *RevisionSchedule) NextDueDate(revisionCount int, now time.Time) time.Time {
	idx := min(max(revisionCount, 0), len(s.intervals)-1)
	return now.AddDate(0, 0, s.intervals[idx])
}
