package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BatchStatus is the lifecycle of a solve batch.
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "queued"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusError     BatchStatus = "error"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusError || s == BatchStatusCancelled
}

// SolveBatch correlates one solve's inputs, progress and outputs.
type SolveBatch struct {
	ID                string       `db:"id" json:"id"`
	SemesterID        string       `db:"semester_id" json:"semester_id"`
	Status            BatchStatus  `db:"status" json:"status"`
	Progress          int          `db:"progress" json:"progress"`
	Message           string       `db:"message" json:"message"`
	TimeBudgetSeconds int          `db:"time_budget_seconds" json:"time_budget_seconds"`
	Summary           SolveSummary `db:"summary" json:"summary"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	StartedAt         *time.Time   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt        *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// SolveSummary is the JSONB result summary of a batch.
type SolveSummary struct {
	SolverStatus string          `json:"solverStatus,omitempty"`
	Placed       int             `json:"placed"`
	Unplaced     int             `json:"unplaced"`
	Skipped      int             `json:"skipped"`
	Archived     int64           `json:"archived"`
	Objective    int64           `json:"objective"`
	ElapsedMS    int64           `json:"elapsedMs"`
	Diagnostic   json.RawMessage `json:"diagnostic,omitempty"`
}

// Value marshals the summary to JSON for persistence.
func (s SolveSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal solve summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the summary.
func (s *SolveSummary) Scan(value interface{}) error {
	if value == nil {
		*s = SolveSummary{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SolveSummary", value)
	}
	if len(data) == 0 {
		*s = SolveSummary{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal solve summary: %w", err)
	}
	return nil
}

// BatchProgress is the progress snapshot published while a batch runs.
type BatchProgress struct {
	BatchID    string      `json:"batchId"`
	SemesterID string      `json:"semesterId"`
	Status     BatchStatus `json:"status"`
	Progress   int         `json:"progress"`
	Message    string      `json:"message"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
