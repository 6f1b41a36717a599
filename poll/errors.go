package poll

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPollConfig = errors.New("invalid poll config")
	ErrTimeoutExceeded   = errors.New("timeout exceeded")
	ErrChainRegression   = errors.New("chain height regressed")
)

// TimeoutError is returned when a condition did not hold before the deadline.
type TimeoutError struct {
	Description  string
	Timeout      time.Duration
	Elapsed      time.Duration
	Attempts     int
	LastObserved any
	LastErr      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v (%d attempts) waiting for %s", e.Elapsed.Round(time.Millisecond), e.Attempts, e.Description)
	if e.LastObserved != nil {
		msg += fmt.Sprintf(", last observed %v", e.LastObserved)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeoutExceeded
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

type RegressionError struct {
	Node     string
	Previous uint64
	Observed uint64
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("node %s: height went from %d to %d", e.Node, e.Previous, e.Observed)
}

func (e *RegressionError) Is(target error) bool {
	return target == ErrChainRegression
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as fatal to the poll that observed it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
