package extension

import "fmt"

// Reasons an extension file is rejected.
const (
	ReasonUnreadable       = "unreadable"
	ReasonForbiddenPattern = "forbidden pattern"
	ReasonEvalFailed       = "evaluation failed"
	ReasonEntryPoint       = "invalid entry point"
	ReasonInvalidSpec      = "invalid tool spec"
	ReasonNameCollision    = "name collision"
)

// RejectError explains why an extension file was not loaded.
type RejectError struct {
	File    string
	Reason  string
	Pattern string // the forbidden pattern that matched, if any
	Err     error
}

func (e *RejectError) Error() string {
	msg := fmt.Sprintf("extension %s rejected: %s", e.File, e.Reason)
	if e.Pattern != "" {
		msg += " (" + e.Pattern + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectError) Unwrap() error { return e.Err }
