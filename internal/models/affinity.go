package models

import "time"

// AffinityBatchStatus tracks an affinity scoring run.
type AffinityBatchStatus string

const (
	AffinityBatchRunning   AffinityBatchStatus = "running"
	AffinityBatchCompleted AffinityBatchStatus = "completed"
	AffinityBatchError     AffinityBatchStatus = "error"
)

// AffinityBatch is one scoring run. Scores written by a batch are never
// updated by later batches.
type AffinityBatch struct {
	ID           string              `db:"id" json:"id"`
	ModelVersion string              `db:"model_version" json:"model_version"`
	Strategy     string              `db:"strategy" json:"strategy"`
	Status       AffinityBatchStatus `db:"status" json:"status"`
	Pairs        int                 `db:"pairs" json:"pairs"`
	Message      *string             `db:"message" json:"message,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}

// InstructorSubjectAffinity is one persisted score.
type InstructorSubjectAffinity struct {
	ID           string    `db:"id" json:"id"`
	BatchID      string    `db:"batch_id" json:"batch_id"`
	ModelVersion string    `db:"model_version" json:"model_version"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Score        float64   `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
