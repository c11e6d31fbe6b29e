package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// FailureList holds the error messages recorded on an execution.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	b, err := scanBytes(value, "FailureList")
	if err != nil {
		return err
	}
	*fl = make(FailureList, 0)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// JobInstance is the logical run of a job for one set of identifying parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance keyed by the parameters hash.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	hash, err := params.Hash()
	if err != nil {
		logger.Errorf("Failed to calculate JobParameters hash: %v", err)
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}
}

// JobExecution is one attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
	RestartCount     int
}

// NewJobExecution creates a JobExecution in the STARTING state.
func NewJobExecution(jobInstanceID string, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make(FailureList, 0),
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

func isValidTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned || next == BatchStatusCompleted
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusFailed, BatchStatusStopped:
		return next == BatchStatusAbandoned
	default:
		return false
	}
}

// TransitionTo changes the status if the transition is allowed.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): Invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

func (je *JobExecution) finish(status JobStatus, exit ExitStatus) {
	if err := je.TransitionTo(status); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to %s: %v", je.ID, status, err)
		je.Status = status
	}
	je.ExitStatus = exit
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsStarted updates the status to STARTED.
func (je *JobExecution) MarkAsStarted() {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to STARTED: %v", je.ID, err)
		je.Status = BatchStatusStarted
	}
	je.StartTime = time.Now()
}

// MarkAsCompleted updates the status to COMPLETED.
func (je *JobExecution) MarkAsCompleted() {
	je.finish(BatchStatusCompleted, ExitStatusCompleted)
}

// MarkAsFailed updates the status to FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.finish(BatchStatusFailed, ExitStatusFailed)
	je.AddFailureException(err)
}

// MarkAsStopped updates the status to STOPPED.
func (je *JobExecution) MarkAsStopped() {
	je.finish(BatchStatusStopped, ExitStatusStopped)
}

// AddFailureException records err once.
func (je *JobExecution) AddFailureException(err error) {
	je.Failures = appendFailure(je.Failures, err)
}

// AddStepExecution links se to this job execution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	se.JobExecution = je
	se.JobExecutionID = je.ID
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution returns the step execution named stepName, if any.
func (je *JobExecution) StepExecution(stepName string) (*StepExecution, bool) {
	for _, se := range je.StepExecutions {
		if se.StepName == stepName {
			return se, true
		}
	}
	return nil, false
}

// FailureReport summarizes a failed job execution for the operator.
type FailureReport struct {
	JobName       string
	StepName      string
	Checkpoint    ExecutionContext
	SkipCount     int
	LastSkipCause string
	Failures      []string
}

// String renders the report on a single line per field.
func (r FailureReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "job '%s' failed at step '%s'\n", r.JobName, r.StepName)
	keys := make([]string, 0, len(r.Checkpoint))
	for k := range r.Checkpoint {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r.Checkpoint[k]))
	}
	fmt.Fprintf(&sb, "  last committed checkpoint: {%s}\n", strings.Join(parts, ", "))
	fmt.Fprintf(&sb, "  skip count: %d\n", r.SkipCount)
	if r.LastSkipCause != "" {
		fmt.Fprintf(&sb, "  last skip cause: %s\n", r.LastSkipCause)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&sb, "  failure: %s\n", f)
	}
	return sb.String()
}

// FailureReport returns the report for the first unsuccessful step, or false if the job did not fail.
func (je *JobExecution) FailureReport() (FailureReport, bool) {
	if je.Status == BatchStatusCompleted {
		return FailureReport{}, false
	}
	for _, se := range je.StepExecutions {
		if se.Status == BatchStatusFailed || se.Status == BatchStatusStopped {
			report := FailureReport{
				JobName:    je.JobName,
				StepName:   se.StepName,
				Checkpoint: se.ExecutionContext.Copy(),
				SkipCount:  se.SkipCount(),
				Failures:   append([]string{}, se.Failures...),
			}
			if n := len(se.SkipRecords); n > 0 {
				report.LastSkipCause = se.SkipRecords[n-1].Message
			}
			return report, true
		}
	}
	if je.Status == BatchStatusFailed || je.Status == BatchStatusStopped {
		return FailureReport{JobName: je.JobName, Failures: append([]string{}, je.Failures...)}, true
	}
	return FailureReport{}, false
}

// StepExecution is one attempt at running a step inside a JobExecution.
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	JobExecutionID   string
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	// ExecutionContext holds the last committed reader position.
	ExecutionContext ExecutionContext
	SkipRecords      []SkipRecord
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution creates a StepExecution in the STARTING state and attaches it to jobExecution.
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	se := &StepExecution{
		ID:               id,
		StepName:         stepName,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make(FailureList, 0),
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
	if jobExecution != nil {
		jobExecution.AddStepExecution(se)
	}
	return se
}

// SkipCount is the total number of skipped items.
func (se *StepExecution) SkipCount() int {
	return se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount
}

// TransitionTo changes the status if the transition is allowed.
func (se *StepExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s): Invalid state transition: %s -> %s", se.ID, se.Status, newStatus)
	}
	se.Status = newStatus
	se.LastUpdated = time.Now()
	return nil
}

func (se *StepExecution) finish(status JobStatus, exit ExitStatus) {
	if err := se.TransitionTo(status); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to %s: %v", se.ID, status, err)
		se.Status = status
	}
	se.ExitStatus = exit
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// MarkAsStarted updates the status to STARTED.
func (se *StepExecution) MarkAsStarted() {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to STARTED: %v", se.ID, err)
		se.Status = BatchStatusStarted
	}
	se.StartTime = time.Now()
}

// MarkAsCompleted updates the status to COMPLETED.
func (se *StepExecution) MarkAsCompleted() {
	se.finish(BatchStatusCompleted, ExitStatusCompleted)
}

// MarkAsBypassed completes a step that was not run because a previous execution completed it.
func (se *StepExecution) MarkAsBypassed() {
	se.finish(BatchStatusCompleted, ExitStatusNoOp)
}

// MarkAsFailed updates the status to FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	se.finish(BatchStatusFailed, ExitStatusFailed)
	se.AddFailureException(err)
}

// MarkAsStopped updates the status to STOPPED.
func (se *StepExecution) MarkAsStopped() {
	se.finish(BatchStatusStopped, ExitStatusStopped)
}

// AddFailureException records err once.
func (se *StepExecution) AddFailureException(err error) {
	se.Failures = appendFailure(se.Failures, err)
	se.LastUpdated = time.Now()
}

// CopyForRestart creates the StepExecution of a new attempt. The last committed
// ExecutionContext is carried over so the reader resumes from its checkpoint.
func (se *StepExecution) CopyForRestart(newJobExecutionID string) *StepExecution {
	return &StepExecution{
		ID:               NewID(),
		StepName:         se.StepName,
		JobExecutionID:   newJobExecutionID,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make(FailureList, 0),
		ExecutionContext: se.ExecutionContext.Copy(),
		LastUpdated:      time.Now(),
	}
}

// DebugString returns a compact representation without the ExecutionContext content.
func (se *StepExecution) DebugString() string {
	return fmt.Sprintf(
		"&{ID:%s StepName:%s Status:%s ExitStatus:%s Read:%d Write:%d Commit:%d Filter:%d SkipRead:%d SkipProcess:%d SkipWrite:%d Context:%d keys}",
		se.ID, se.StepName, se.Status, se.ExitStatus, se.ReadCount, se.WriteCount, se.CommitCount,
		se.FilterCount, se.SkipReadCount, se.SkipProcessCount, se.SkipWriteCount, len(se.ExecutionContext),
	)
}

func appendFailure(list FailureList, err error) FailureList {
	if err == nil {
		return list
	}
	msg := err.Error()
	for _, existing := range list {
		if existing == msg {
			return list
		}
	}
	return append(list, msg)
}

// CheckpointData is the persisted checkpoint of a step execution.
type CheckpointData struct {
	StepExecutionID  string
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}
