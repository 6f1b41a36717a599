package upgrade

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrActivationTooSoon = errors.New("activation too soon")
	ErrNoBinaries        = errors.New("no binaries to stage")
)

// ArtifactIntegrityError reports a staged artifact whose digest differs
// from the source file or from the caller's pinned checksum.
type ArtifactIntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ArtifactIntegrityError) Error() string {
	return fmt.Sprintf("artifact %s: sha256 %s, expected %s", e.Path, e.Actual, e.Expected)
}

// ConvergenceError holds every node that did not converge after activation.
type ConvergenceError struct {
	ProposalID uint64
	Nodes      map[string]error
}

func (e *ConvergenceError) Error() string {
	names := make([]string, 0, len(e.Nodes))
	for name := range e.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Nodes[name])
	}
	return fmt.Sprintf("upgrade proposal %d: %d node(s) did not converge: %s", e.ProposalID, len(names), strings.Join(parts, "; "))
}

func (e *ConvergenceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Nodes))
	for _, err := range e.Nodes {
		errs = append(errs, err)
	}
	return errs
}
