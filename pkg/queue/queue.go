package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job asks a worker to analyze one uploaded contract.
type Job struct {
	ID         string    `json:"id"`
	ContractID uuid.UUID `json:"contract_id"`
	UserID     uuid.UUID `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempt is 1 on first delivery. LastAttempt is set when a failure will
	// not be redelivered.
	Attempt     int  `json:"-"`
	LastAttempt bool `json:"-"`
}

// Handler processes a single delivered job.
type Handler func(ctx context.Context, job Job) error

// Publisher enqueues analysis jobs.
type Publisher interface {
	Enqueue(ctx context.Context, job Job) error
}

// Consumer delivers jobs to a handler until ctx is canceled.
type Consumer interface {
	Run(ctx context.Context, concurrency int, handler Handler) error
}

// NewJob builds a job for the contract with a fresh id.
func NewJob(contractID, userID uuid.UUID, now time.Time) Job {
	return Job{
		ID:         uuid.NewString(),
		ContractID: contractID,
		UserID:     userID,
		EnqueuedAt: now.UTC(),
	}
}

var errPermanent = errors.New("permanent job failure")

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() []error { return []error{e.err, errPermanent} }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

func encodeJob(job Job) ([]byte, error) {
	if job.ContractID == uuid.Nil {
		return nil, errors.New("contract id required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ContractID == uuid.Nil {
		return Job{}, errors.New("job missing contract id")
	}
	return job, nil
}
