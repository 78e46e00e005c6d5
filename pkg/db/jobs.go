package db

import (
	"database/sql"
	"time"

	"github.com/go-errors/errors"
)

var ErrJobNotFound = errors.New("job not found")

// fixed width so stored timestamps sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Job is one fine-tuning job as last observed.
type Job struct {
	JobID          string    `json:"job_id"`
	TrainingFile   string    `json:"training_file,omitempty"`
	FileID         string    `json:"file_id,omitempty"`
	Model          string    `json:"model,omitempty"`
	Status         string    `json:"status"`
	FineTunedModel string    `json:"fine_tuned_model,omitempty"`
	TrainedTokens  *int64    `json:"trained_tokens,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	upsertJob = `
	INSERT INTO jobs (job_id, training_file, file_id, model, status, fine_tuned_model, trained_tokens, error, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
-- 		empty values never erase what an earlier poll recorded
		training_file = COALESCE(NULLIF(excluded.training_file, ''), jobs.training_file),
		file_id = COALESCE(NULLIF(excluded.file_id, ''), jobs.file_id),
		model = COALESCE(NULLIF(excluded.model, ''), jobs.model),
		status = excluded.status,
		fine_tuned_model = COALESCE(NULLIF(excluded.fine_tuned_model, ''), jobs.fine_tuned_model),
		trained_tokens = COALESCE(excluded.trained_tokens, jobs.trained_tokens),
		error = COALESCE(NULLIF(excluded.error, ''), jobs.error),
		updated_at = excluded.updated_at
	`

	selectJobColumns = `SELECT job_id, training_file, file_id, model, status, fine_tuned_model, trained_tokens, error, created_at, updated_at FROM jobs`
	selectJob        = selectJobColumns + ` WHERE job_id = ?`
	selectJobs       = selectJobColumns + ` ORDER BY created_at DESC, job_id`
)

// UpsertJob records the latest state of a job. CreatedAt is kept from the
// first insert.
func (db Sqlite) UpsertJob(job Job) error {
	if job.JobID == "" {
		return errors.New("job id is required")
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	var tokens sql.NullInt64
	if job.TrainedTokens != nil {
		tokens = sql.NullInt64{Int64: *job.TrainedTokens, Valid: true}
	}

	_, err := db.ExecContext(db.context, upsertJob,
		job.JobID,
		job.TrainingFile,
		job.FileID,
		job.Model,
		job.Status,
		job.FineTunedModel,
		tokens,
		job.Error,
		job.CreatedAt.UTC().Format(timeFormat),
		job.UpdatedAt.UTC().Format(timeFormat),
	)
	return err
}

func (db Sqlite) GetJob(jobID string) (Job, error) {
	job, err := scanJob(db.QueryRowContext(db.context, selectJob, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

// AllJobs returns every job, newest first.
func (db Sqlite) AllJobs() ([]Job, error) {
	rows, err := db.QueryContext(db.context, selectJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var (
		job                  Job
		tokens               sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&job.JobID,
		&job.TrainingFile,
		&job.FileID,
		&job.Model,
		&job.Status,
		&job.FineTunedModel,
		&tokens,
		&job.Error,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return Job{}, err
	}

	if tokens.Valid {
		job.TrainedTokens = &tokens.Int64
	}
	if job.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return Job{}, err
	}
	if job.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return Job{}, err
	}
	return job, nil
}
