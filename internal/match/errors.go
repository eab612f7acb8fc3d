package match

import (
	"errors"
	"fmt"
)

// ErrNotFound means the recommendation id does not exist. Distinct from
// store failures so handlers can answer 404 instead of 502.
var ErrNotFound = errors.New("recommendation not found")

// ErrMissingBrokerage means neither the client nor the acting agent carries
// a brokerage id. Hard precondition failure: nothing was written.
var ErrMissingBrokerage = errors.New("no brokerage association for client or agent")

// ErrInvalidState means the recommendation is no longer in the new state.
// Callers should treat this as a stale-UI no-op, not a user-visible error.
var ErrInvalidState = errors.New("recommendation is not in the new state")

// ErrAttachInFlight means another attach for the same recommendation holds
// the lock right now.
var ErrAttachInFlight = errors.New("attach already in progress")

// ErrStoreTimeout marks a store call that exceeded its deadline.
var ErrStoreTimeout = errors.New("store call timed out")

// Stages of the attach workflow that can fail after the property row
// already landed.
const (
	StageClientLink = "client_link"
	StageStatus     = "status_update"
)

// PartialAttachError reports an attach that failed after the property
// upsert succeeded. The message must tell the caller exactly which side
// effects already happened.
type PartialAttachError struct {
	PropertyID string
	LinkDone   bool
	Stage      string
	Err        error
}

func (e *PartialAttachError) Error() string {
	switch e.Stage {
	case StageClientLink:
		return fmt.Sprintf("property %s was created or updated, but linking it to the client failed: %v", e.PropertyID, e.Err)
	case StageStatus:
		return fmt.Sprintf("property %s was attached and linked, but the recommendation status update failed (safe to retry): %v", e.PropertyID, e.Err)
	}
	return fmt.Sprintf("attach partially failed at %s: %v", e.Stage, e.Err)
}

func (e *PartialAttachError) Unwrap() error { return e.Err }
