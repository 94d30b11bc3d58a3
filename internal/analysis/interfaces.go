package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("analysis run not found")

// ErrTerminalRun signals an attempted transition out of a terminal state.
// Callers treat it as a programming error, not a user-facing one.
var ErrTerminalRun = errors.New("analysis run already terminal")

// RunStore persists runs and their check results.
type RunStore interface {
	// CreateRun inserts a new run in pending status with progress 0.
	CreateRun(ctx context.Context, run Run) error
	// GetRun loads a run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// StartRun moves a pending run to analyzing. Calling it on a run that is
	// already analyzing is a no-op so executor retries stay safe; calling it
	// on a terminal run returns ErrTerminalRun.
	StartRun(ctx context.Context, runID uuid.UUID, at time.Time) error
	// UpdateProgress raises the run's progress. Lower values are ignored so
	// progress stays monotonically non-decreasing.
	UpdateProgress(ctx context.Context, runID uuid.UUID, progress int) error
	// CompleteRun applies the terminal complete transition.
	CompleteRun(ctx context.Context, runID uuid.UUID, completion RunCompletion) error
	// FailRun applies the terminal failed transition with the error message.
	FailRun(ctx context.Context, runID uuid.UUID, at time.Time, errText string) error
	// UpsertResults writes a stage's results atomically, keyed by
	// (run, check name) so re-running a stage never duplicates rows.
	UpsertResults(ctx context.Context, runID uuid.UUID, results []CheckResult) error
	// ListResults returns all recorded results for a run in insertion order.
	ListResults(ctx context.Context, runID uuid.UUID) ([]CheckResult, error)
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus timing metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Queue provides enqueue/dequeue semantics for analysis runs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
