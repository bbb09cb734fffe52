package engine

import (
	"github.com/gamewake/gamewake/internal/transport"
)

// Outcome is the classification of a single delivery attempt.
type Outcome int

const (
	// OutcomeSuccess means the push service accepted the message.
	OutcomeSuccess Outcome = iota
	// OutcomePermanentFailure means the endpoint no longer exists and the
	// subscription should be forgotten.
	OutcomePermanentFailure
	// OutcomeTransientFailure means the attempt failed for a reason that
	// may succeed on a later fanout. The subscription is left intact.
	OutcomeTransientFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "sent"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "transient_failure"
	}
}

// Classifier turns a delivery error into an Outcome, decoupling the
// dispatcher from any one transport's status-code conventions.
type Classifier func(err error) Outcome

// ClassifyWebPush is the classifier for the Web Push transport: 404 and 410
// from the push service mean the endpoint is gone for good; every other
// error, including timeouts and a missing signing identity, is transient.
func ClassifyWebPush(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if transport.GoneStatus(err) {
		return OutcomePermanentFailure
	}
	return OutcomeTransientFailure
}
