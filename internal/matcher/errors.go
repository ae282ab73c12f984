package matcher

import (
	"errors"
	"fmt"

	"github.com/example/freight-matching/internal/models"
)

var (
	// ErrRetrieval means routes or loads could not be read. Nothing was
	// written and the call is safe to retry.
	ErrRetrieval = errors.New("retrieval failure")
	// ErrStaleCandidate means the route or load is no longer open.
	ErrStaleCandidate = errors.New("stale candidate")
	// ErrPartialCommit means the route or load may have been claimed without
	// a match being recorded. Needs manual reconciliation; never retried.
	ErrPartialCommit = errors.New("partial commit")
	// ErrInvalidCandidate means the candidate was rejected before any write.
	ErrInvalidCandidate = errors.New("invalid candidate")
	// ErrCommitFailed means the commit failed and left nothing changed.
	ErrCommitFailed = errors.New("commit failed")
)

type Step string

const (
	StepValidate     Step = "validate"
	StepClaimRoute   Step = "claim_route"
	StepClaimLoad    Step = "claim_load"
	StepInsertMatch  Step = "insert_match"
	StepCommitTx     Step = "commit_tx"
	StepReleaseRoute Step = "release_route"
)

// CommitError reports which step of a commit failed and how.
// errors.Is matches both Kind and the underlying cause.
type CommitError struct {
	CandidateID string
	RouteID     string
	LoadID      string
	LoadSource  models.LoadSource
	Step        Step
	Kind        error
	Err         error
}

func newCommitError(c models.Candidate, step Step, kind, err error) *CommitError {
	return &CommitError{
		CandidateID: c.ID,
		RouteID:     c.Route.ID,
		LoadID:      c.Load.ID,
		LoadSource:  c.Load.Source,
		Step:        step,
		Kind:        kind,
		Err:         err,
	}
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s: %v at %s: %v", e.CandidateID, e.Kind, e.Step, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{e.Kind, e.Err} }
