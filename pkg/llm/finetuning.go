package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type JobStatus string

const (
	StatusValidatingFiles JobStatus = "validating_files"
	StatusQueued          JobStatus = "queued"
	StatusRunning         JobStatus = "running"
	StatusSucceeded       JobStatus = "succeeded"
	StatusFailed          JobStatus = "failed"
	StatusCancelled       JobStatus = "cancelled"
)

// Terminal reports whether the job will not change status again.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

type JobRequest struct {
	TrainingFile string `json:"training_file"`
	Model        string `json:"model"`
	Suffix       string `json:"suffix,omitempty"`
}

type FineTuningJob struct {
	ID             string    `json:"id"`
	Object         string    `json:"object"`
	Model          string    `json:"model"`
	CreatedAt      int64     `json:"created_at"`
	FinishedAt     *int64    `json:"finished_at"`
	FineTunedModel string    `json:"fine_tuned_model"`
	Status         JobStatus `json:"status"`
	TrainingFile   string    `json:"training_file"`
	TrainedTokens  *int64    `json:"trained_tokens"`
	Error          *JobError `json:"error"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

func (e *JobError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Failure returns the remote error when the job carries one.
func (j FineTuningJob) Failure() error {
	if j.Error == nil || (j.Error.Message == "" && j.Error.Code == "") {
		return nil
	}
	return j.Error
}

func (c *Client) CreateFineTuningJob(ctx context.Context, request JobRequest) (FineTuningJob, error) {
	var job FineTuningJob
	if err := c.do(ctx, http.MethodPost, c.endpoint("fine_tuning", "jobs"), request, &job); err != nil {
		return FineTuningJob{}, fmt.Errorf("failed to create fine-tuning job: %w", err)
	}
	return job, nil
}

func (c *Client) RetrieveFineTuningJob(ctx context.Context, id string) (FineTuningJob, error) {
	var job FineTuningJob
	if err := c.do(ctx, http.MethodGet, c.endpoint("fine_tuning", "jobs", url.PathEscape(id)), nil, &job); err != nil {
		return FineTuningJob{}, fmt.Errorf("failed to retrieve fine-tuning job %s: %w", id, err)
	}
	return job, nil
}
