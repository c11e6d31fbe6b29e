package sql

import (
	"time"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// JobInstanceEntity is the persisted form of model.JobInstance.
type JobInstanceEntity struct {
	ID             string              `gorm:"primaryKey;size:36"`
	JobName        string              `gorm:"size:100;not null;index:idx_job_instance_key,priority:1"`
	ParametersHash string              `gorm:"size:64;not null;index:idx_job_instance_key,priority:2"`
	Parameters     model.JobParameters `gorm:"type:text"`
	CreateTime     time.Time
	Version        int
	CreatedSeq     int64 `gorm:"autoCreateTime:nano;index"`
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the persisted form of model.JobExecution. Step executions live in
// their own table and are attached by the repository.
type JobExecutionEntity struct {
	ID               string              `gorm:"primaryKey;size:36"`
	JobInstanceID    string              `gorm:"size:36;not null;index"`
	JobName          string              `gorm:"size:100;not null"`
	Parameters       model.JobParameters `gorm:"type:text"`
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus  `gorm:"size:20"`
	ExitStatus       model.ExitStatus `gorm:"size:20"`
	Failures         model.FailureList      `gorm:"type:text"`
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	CurrentStepName  string                 `gorm:"size:100"`
	RestartCount     int
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	CreatedSeq       int64 `gorm:"autoCreateTime:nano;index"`
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the persisted form of model.StepExecution.
type StepExecutionEntity struct {
	ID               string `gorm:"primaryKey;size:36"`
	StepName         string `gorm:"size:100;not null;index"`
	JobExecutionID   string `gorm:"size:36;not null;index"`
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus  `gorm:"size:20"`
	ExitStatus       model.ExitStatus `gorm:"size:20"`
	Failures         model.FailureList `gorm:"type:text"`
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	SkipRecords      []model.SkipRecord     `gorm:"type:text;serializer:json"`
	LastUpdated      time.Time
	Version          int
	CreatedSeq       int64 `gorm:"autoCreateTime:nano;index"`
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// CheckpointDataEntity holds the last committed ExecutionContext of a step execution.
type CheckpointDataEntity struct {
	StepExecutionID  string                 `gorm:"primaryKey;size:36"`
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	LastUpdated      time.Time
}

func (CheckpointDataEntity) TableName() string {
	return "batch_checkpoint_data"
}

// entities lists the tables created by AutoMigrate.
func entities() []interface{} {
	return []interface{}{
		&JobInstanceEntity{},
		&JobExecutionEntity{},
		&StepExecutionEntity{},
		&CheckpointDataEntity{},
	}
}
