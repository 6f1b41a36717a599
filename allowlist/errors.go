package allowlist

import (
	"errors"
	"fmt"

	"github.com/gradosphera/gonka/tx"
)

var (
	// ErrMalformedProbe means the chain found a probe invalid, which is a
	// bug in the probe and says nothing about authorization.
	ErrMalformedProbe = errors.New("malformed probe")
	ErrNotRejected    = errors.New("probe not rejected as unauthorized")
	ErrUnauthorized   = errors.New("probe rejected as unauthorized")
)

type ProbeError struct {
	Node      string
	Address   string
	Kind      tx.MsgType
	Code      uint32
	Codespace string
	Log       string
	Err       error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s from %s (%s): code %d (%s): %v: %s", e.Kind, e.Node, e.Address, e.Code, e.Codespace, e.Err, e.Log)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// MismatchError is an allow list read back after a mutation that does not
// hold what the mutation should have left.
type MismatchError struct {
	Op   tx.AllowListOp
	Want []string
	Got  []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("allow list after %s: got %v, want %v", e.Op, e.Got, e.Want)
}
