// Package queue describes the background jobs attached to a stored upload and
// schedules them through asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/VaultForm/internal/model"
)

const (
	// TaskExtract pulls text out of an uploaded PDF.
	TaskExtract = "upload:extract"
	// TaskRemind fires at the upload's reminder date.
	TaskRemind = "upload:remind"
	// TaskExpire removes the blob at the upload's expiration date.
	TaskExpire = "upload:expire"
)

// Payload is serialized into the task so the worker knows which upload and
// object to act on.
type Payload struct {
	UploadID  string `json:"upload_id"`
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
}

// Job is one unit of scheduled work. A zero RunAt means as soon as possible.
type Job struct {
	Type    string
	Payload Payload
	RunAt   time.Time
}

// Scheduler accepts jobs for later execution.
type Scheduler interface {
	Schedule(ctx context.Context, job Job) error
}

// Plan lists the jobs a freshly stored upload needs.
func Plan(u *model.StoredUpload) []Job {
	p := Payload{UploadID: u.ID, ObjectKey: u.ObjectKey, FileName: u.FileName}
	var jobs []Job
	if u.ContentType == "application/pdf" || u.FileType == "application/pdf" {
		jobs = append(jobs, Job{Type: TaskExtract, Payload: p})
	}
	if u.Reminder != nil {
		jobs = append(jobs, Job{Type: TaskRemind, Payload: p, RunAt: *u.Reminder})
	}
	if u.ExpireAt != nil {
		jobs = append(jobs, Job{Type: TaskExpire, Payload: p, RunAt: *u.ExpireAt})
	}
	return jobs
}

// ScheduleAll schedules every job, stopping at the first failure.
func ScheduleAll(ctx context.Context, s Scheduler, jobs []Job) error {
	for _, job := range jobs {
		if err := s.Schedule(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// Enqueuer is the part of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler schedules jobs on Redis through asynq.
type AsynqScheduler struct {
	client Enqueuer
}

var _ Scheduler = (*AsynqScheduler)(nil)

// NewAsynqScheduler wraps an asynq client.
func NewAsynqScheduler(client Enqueuer) *AsynqScheduler {
	return &AsynqScheduler{client: client}
}

// Schedule enqueues job, delaying it until RunAt when set.
func (s *AsynqScheduler) Schedule(ctx context.Context, job Job) error {
	task, opts, err := NewTask(job)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s task: %w", job.Type, err)
	}
	return nil
}

// NewTask converts a Job to an asynq task and its options.
func NewTask(job Job) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(5)}
	if !job.RunAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(job.RunAt))
	}
	return asynq.NewTask(job.Type, data), opts, nil
}

// DecodePayload reads a task payload.
func DecodePayload(task *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
