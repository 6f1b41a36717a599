package chain

import (
	"errors"
	"fmt"

	"github.com/gradosphera/gonka/types"
)

var (
	ErrRestartUnsupported = errors.New("restart not supported")
	ErrNodeUnavailable    = errors.New("node unavailable")
)

// QueryError is a transport failure (Code 0, Err set) or a chain-side
// rejection of a query (Code non-zero).
type QueryError struct {
	Path string
	Code uint32
	Log  string
	Err  error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("query %s: code %d: %s", e.Path, e.Code, e.Log)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the chain answered that nothing is stored at the path.
func (e *QueryError) NotFound() bool {
	return e.Err == nil && e.Code == types.QueryCodeNotFound
}

type DecodeError struct {
	Path string
	Raw  []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (raw %q)", e.Path, e.Err, truncate(e.Raw, 128))
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a query answered with the not-found code.
func IsNotFound(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.NotFound()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
