// Package finetune drives a remote fine-tuning job from a validated training
// file to a saved model name.
package finetune

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	units "github.com/labstack/gommon/bytes"

	"github.com/ellypaws/macrotune/pkg/dataset"
	"github.com/ellypaws/macrotune/pkg/db"
	"github.com/ellypaws/macrotune/pkg/llm"
	"github.com/ellypaws/macrotune/pkg/logger"
)

type State string

const (
	StateUnvalidated State = "unvalidated"
	StateValidated   State = "validated"
	StateUploaded    State = "uploaded"
	StateJobCreated  State = "job-created"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateAbandoned   State = "abandoned"
)

// Terminal reports whether the driver can make no further progress.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAbandoned
}

var (
	ErrInvalidTransition   = errors.Errorf("invalid state transition")
	ErrInvalidTrainingData = errors.Errorf("invalid training data")
	// ErrAbandoned means polling stopped before the job reached a terminal status.
	ErrAbandoned = errors.Errorf("stopped monitoring fine-tuning job")
)

// API is the part of the remote service the driver needs. *llm.Client implements it.
type API interface {
	UploadFile(ctx context.Context, path, purpose string) (llm.File, error)
	CreateFineTuningJob(ctx context.Context, request llm.JobRequest) (llm.FineTuningJob, error)
	RetrieveFineTuningJob(ctx context.Context, id string) (llm.FineTuningJob, error)
}

// Recorder persists every observed job status. *db.Sqlite implements it.
type Recorder interface {
	UpsertJob(job db.Job) error
}

// Status is reported to the Observer after every transition and poll.
type Status struct {
	State   State
	Job     llm.FineTuningJob
	Attempt int
	At      time.Time
	Message string
}

type Observer func(Status)

// Outcome is where a monitored job ended up.
type Outcome struct {
	State          State
	JobID          string
	FineTunedModel string
	Job            llm.FineTuningJob
}

// Driver is not safe for concurrent use.
type Driver struct {
	api      API
	config   Config
	clock    Clock
	log      logger.Logger
	observer Observer
	recorder Recorder

	state  State
	fileID string
	jobID  string
}

type Option func(*Driver)

func WithClock(c Clock) Option          { return func(d *Driver) { d.clock = c } }
func WithLogger(l logger.Logger) Option { return func(d *Driver) { d.log = l } }
func WithObserver(o Observer) Option    { return func(d *Driver) { d.observer = o } }
func WithRecorder(r Recorder) Option    { return func(d *Driver) { d.recorder = r } }

func New(api API, config Config, opts ...Option) *Driver {
	d := &Driver{
		api:    api,
		config: config,
		clock:  realClock{},
		state:  StateUnvalidated,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrDiscard(d.log)
	if d.config.PollInterval <= 0 {
		d.config.PollInterval = DefaultConfig().PollInterval
	}
	if d.config.Model == "" {
		d.config.Model = DefaultConfig().Model
	}
	return d
}

func (d *Driver) State() State   { return d.state }
func (d *Driver) FileID() string { return d.fileID }
func (d *Driver) JobID() string  { return d.jobID }

func (d *Driver) expect(state State, action string) error {
	if d.state != state {
		return fmt.Errorf("%w: %s requires %s, driver is %s", ErrInvalidTransition, action, state, d.state)
	}
	return nil
}

func (d *Driver) notify(job llm.FineTuningJob, attempt int, message string) {
	if d.observer == nil {
		return
	}
	d.observer(Status{
		State:   d.state,
		Job:     job,
		Attempt: attempt,
		At:      d.clock.Now(),
		Message: message,
	})
}

func (d *Driver) record(job llm.FineTuningJob) {
	if d.recorder == nil || job.ID == "" {
		return
	}
	entry := db.Job{
		JobID:          job.ID,
		TrainingFile:   d.config.TrainingPath,
		FileID:         d.fileID,
		Model:          job.Model,
		Status:         string(job.Status),
		FineTunedModel: job.FineTunedModel,
		TrainedTokens:  job.TrainedTokens,
	}
	if entry.Model == "" {
		entry.Model = d.config.Model
	}
	if err := job.Failure(); err != nil {
		entry.Error = err.Error()
	}
	if err := d.recorder.UpsertJob(entry); err != nil {
		d.log.Warnf("could not record job %s: %v", job.ID, err)
	}
}

// Validate checks the training file before anything is uploaded.
func (d *Driver) Validate() (dataset.Result, error) {
	if err := d.expect(StateUnvalidated, "validate"); err != nil {
		return dataset.Result{}, err
	}

	d.log.Infof("Validating training data...")
	result := dataset.ValidateFile(d.config.TrainingPath)
	if !result.OK {
		return result, fmt.Errorf("%w: %s", ErrInvalidTrainingData, result.Message())
	}

	d.log.Infof("%s", result.Message())
	d.state = StateValidated
	d.notify(llm.FineTuningJob{}, 0, result.Message())
	return result, nil
}

func (d *Driver) Upload(ctx context.Context) (llm.File, error) {
	if err := d.expect(StateValidated, "upload"); err != nil {
		return llm.File{}, err
	}

	d.log.Infof("Uploading training file...")
	file, err := d.api.UploadFile(ctx, d.config.TrainingPath, llm.PurposeFineTune)
	if err != nil {
		return llm.File{}, err
	}

	d.fileID = file.ID
	d.state = StateUploaded
	message := fmt.Sprintf("File uploaded successfully. File ID: %s (%s)", file.ID, units.Format(file.Bytes))
	d.log.Infof("%s", message)
	d.notify(llm.FineTuningJob{}, 0, message)
	return file, nil
}

func (d *Driver) CreateJob(ctx context.Context) (llm.FineTuningJob, error) {
	if err := d.expect(StateUploaded, "create job"); err != nil {
		return llm.FineTuningJob{}, err
	}

	d.log.Infof("Creating fine-tuning job with model %s...", d.config.Model)
	job, err := d.api.CreateFineTuningJob(ctx, llm.JobRequest{
		TrainingFile: d.fileID,
		Model:        d.config.Model,
	})
	if err != nil {
		return llm.FineTuningJob{}, err
	}

	d.jobID = job.ID
	d.state = StateJobCreated
	message := fmt.Sprintf("Fine-tuning job created. Job ID: %s", job.ID)
	d.log.Infof("%s", message)
	d.record(job)
	d.notify(job, 0, message)
	return job, nil
}

// Monitor polls the job until it succeeds or fails. Running out of attempts,
// passing the deadline or cancelling ctx abandons the job locally and returns
// ErrAbandoned; the remote job keeps running and can be resumed. Rate limits
// and server errors while polling use up an attempt and are retried.
func (d *Driver) Monitor(ctx context.Context) (Outcome, error) {
	if err := d.expect(StateJobCreated, "monitor"); err != nil {
		return Outcome{State: d.state}, err
	}

	d.log.Infof("Monitoring fine-tuning progress...")
	start := d.clock.Now()

	var job llm.FineTuningJob
	for attempt := 1; ; attempt++ {
		latest, err := d.api.RetrieveFineTuningJob(ctx, d.jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return d.abandon(job, attempt, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err()))
		case err != nil && !temporary(err):
			return Outcome{State: d.state, JobID: d.jobID, Job: job}, err
		case err != nil:
			d.log.Warnf("Error checking status, will retry: %v", err)
			d.notify(job, attempt, fmt.Sprintf("Error checking status: %v", err))
		default:
			job = latest
			d.log.Infof("Status: %s", job.Status)
			if job.TrainedTokens != nil {
				d.log.Infof("Trained tokens: %d", *job.TrainedTokens)
			}
			d.record(job)

			switch job.Status {
			case llm.StatusSucceeded:
				return d.succeed(job, attempt)
			case llm.StatusFailed, llm.StatusCancelled:
				d.state = StateFailed
				message := "Fine-tuning failed!"
				if err := job.Failure(); err != nil {
					message = fmt.Sprintf("Fine-tuning failed! Error: %v", err)
				}
				d.log.Errorf("%s", message)
				d.notify(job, attempt, message)
				return Outcome{State: StateFailed, JobID: d.jobID, Job: job}, nil
			}

			d.notify(job, attempt, fmt.Sprintf("Status: %s", job.Status))
		}

		if d.config.MaxAttempts > 0 && attempt >= d.config.MaxAttempts {
			return d.abandon(job, attempt, fmt.Errorf("%w: no terminal status after %d attempts", ErrAbandoned, attempt))
		}
		if d.config.Deadline > 0 && d.clock.Now().Add(d.config.PollInterval).Sub(start) > d.config.Deadline {
			return d.abandon(job, attempt, fmt.Errorf("%w: deadline of %s reached", ErrAbandoned, d.config.Deadline))
		}

		d.log.Infof("Checking again in %s...", d.config.PollInterval)
		if err := d.clock.Sleep(ctx, d.config.PollInterval); err != nil {
			return d.abandon(job, attempt, fmt.Errorf("%w: %w", ErrAbandoned, err))
		}
	}
}

// temporary reports whether a failed status check is worth repeating on the
// next poll, such as a rate limit or a server error.
func temporary(err error) bool {
	var apiErr *llm.APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

func (d *Driver) succeed(job llm.FineTuningJob, attempt int) (Outcome, error) {
	d.state = StateSucceeded
	outcome := Outcome{State: StateSucceeded, JobID: d.jobID, FineTunedModel: job.FineTunedModel, Job: job}

	d.log.Infof("Fine-tuning completed successfully! Your fine-tuned model name: %s", job.FineTunedModel)
	if err := saveModelName(d.config.ModelOutputPath, job.FineTunedModel); err != nil {
		return outcome, fmt.Errorf("failed to save model name: %w", err)
	}
	d.log.Infof("Model name saved to: %s", d.config.ModelOutputPath)
	d.notify(job, attempt, "Model name saved to: "+d.config.ModelOutputPath)
	return outcome, nil
}

func (d *Driver) abandon(job llm.FineTuningJob, attempt int, err error) (Outcome, error) {
	d.state = StateAbandoned
	d.log.Warnf("%v, job %s is still running remotely", err, d.jobID)
	d.notify(job, attempt, err.Error())
	return Outcome{State: StateAbandoned, JobID: d.jobID, Job: job}, err
}

// Run validates, uploads, creates the job and monitors it to the end.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	if _, err := d.Validate(); err != nil {
		return Outcome{State: d.state}, err
	}
	if _, err := d.Upload(ctx); err != nil {
		return Outcome{State: d.state}, err
	}
	if _, err := d.CreateJob(ctx); err != nil {
		return Outcome{State: d.state}, err
	}
	return d.Monitor(ctx)
}

// Resume monitors a job created by an earlier run.
func (d *Driver) Resume(ctx context.Context, jobID string) (Outcome, error) {
	if jobID == "" {
		return Outcome{State: d.state}, errors.Errorf("job id is required")
	}
	if err := d.expect(StateUnvalidated, "resume"); err != nil {
		return Outcome{State: d.state}, err
	}
	d.state = StateJobCreated
	d.jobID = jobID
	return d.Monitor(ctx)
}

func saveModelName(path, model string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(model), 0644)
}
