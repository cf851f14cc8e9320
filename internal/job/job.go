package job

import (
	"errors"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is one symbol download in the ledger.
type Job struct {
	ID           int64         `json:"id"`
	Technical    string        `json:"technical"`
	Symbol       string        `json:"symbol"`
	StartDate    time.Time     `json:"startDate"`
	EndDate      time.Time     `json:"endDate"`
	Status       Status        `json:"status"`
	Kind         apperror.Code `json:"kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	RecordsCount int64         `json:"recordsCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}
