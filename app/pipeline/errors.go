package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a job failure. It is stored on the job row as error_kind.
type Kind string

const (
	KindFetchFailed        Kind = "fetch_failed"
	KindExtractionEmpty    Kind = "extraction_empty"
	KindSummaryFailed      Kind = "summary_failed"
	KindSynthesisFailed    Kind = "synthesis_failed"
	KindStorageError       Kind = "storage_error"
	KindPersistenceFailed  Kind = "persistence_failed"
	KindStatusUpdateFailed Kind = "status_update_failed"
)

var (
	ErrNoPendingJobs = errors.New("no pending jobs")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotFailed  = errors.New("only jobs in error state can be requeued")
	ErrInvalidURL    = errors.New("invalid url")
)

// Error is a pipeline step failure scoped to a single job.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
