package runstore

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Trigger says what created a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// DateLayout is the format of a logical date.
const DateLayout = "2006-01-02"

// Run is one execution of the workflow for a logical date.
type Run struct {
	ID           string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	DAGID        string     `gorm:"column:dag_id;size:128;not null;index:idx_runs_dag_date,priority:1" json:"dag_id"`
	LogicalDate  string     `gorm:"column:logical_date;size:10;not null;index:idx_runs_dag_date,priority:2" json:"logical_date"`
	Trigger      Trigger    `gorm:"column:run_trigger;size:16;not null" json:"trigger"`
	Status       RunStatus  `gorm:"column:status;size:16;not null;index" json:"status"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt      *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	FailedTask   string     `gorm:"column:failed_task;size:128" json:"failed_task,omitempty"`
	ErrorCode    string     `gorm:"column:error_code;size:64" json:"error_code,omitempty"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Attempts     int        `gorm:"column:attempts" json:"attempts,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// NewRun creates a pending run with a fresh ID.
func NewRun(dagID string, logicalDate time.Time, trigger Trigger) *Run {
	return &Run{
		ID:          uuid.NewString(),
		DAGID:       dagID,
		LogicalDate: logicalDate.Format(DateLayout),
		Trigger:     trigger,
		Status:      RunPending,
	}
}

// Date parses LogicalDate.
func (r *Run) Date() (time.Time, error) {
	return time.Parse(DateLayout, r.LogicalDate)
}

// Start marks the run running.
func (r *Run) Start(at time.Time) {
	r.Status = RunRunning
	r.StartedAt = &at
}

// Succeed marks the run succeeded.
func (r *Run) Succeed(at time.Time) {
	r.Status = RunSucceeded
	r.EndedAt = &at
}

// Fail marks the run failed with the failing task's detail.
func (r *Run) Fail(at time.Time, task, code, message string, attempts int) {
	r.Status = RunFailed
	r.EndedAt = &at
	r.FailedTask = task
	r.ErrorCode = code
	r.ErrorMessage = message
	r.Attempts = attempts
}

// Interrupt fails a run that was left unfinished by an earlier process.
func (r *Run) Interrupt(at time.Time, code, message string) {
	r.Status = RunFailed
	r.EndedAt = &at
	r.ErrorCode = code
	r.ErrorMessage = message
}

// TaskAttempt records one task state transition within a run.
type TaskAttempt struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID        string    `gorm:"column:run_id;size:36;not null;index" json:"run_id"`
	Task         string    `gorm:"size:128;not null" json:"task"`
	Attempt      int       `json:"attempt"`
	Status       string    `gorm:"size:16;not null" json:"status"`
	ErrorCode    string    `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	At           time.Time `json:"at"`
}
