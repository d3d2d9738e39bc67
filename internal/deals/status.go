package deals

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a deal. Values are the stored wire strings.
type Status string

const (
	StatusAwaitingUpload   Status = "1_AwaitingUpload"
	StatusProcessing       Status = "2_Processing"
	StatusAnalyzed         Status = "4_Analyzed"
	StatusProcessingFailed Status = "Error_Processing_Failed"
	StatusAnalysisFailed   Status = "Error_Analysis_Failed"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrRunInProgress     = errors.New("analysis already running for deal")
	// ErrRunQueued means a run was active and a follow-up run has been requested.
	ErrRunQueued = errors.New("analysis queued behind running analysis")
	// ErrRunSuperseded means the run lost its lease to a newer run.
	ErrRunSuperseded = errors.New("analysis run superseded")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingUpload, StatusProcessing, StatusAnalyzed, StatusProcessingFailed, StatusAnalysisFailed:
		return true
	}
	return false
}

// IsError reports whether s is one of the Error_* states.
func (s Status) IsError() bool {
	return s == StatusProcessingFailed || s == StatusAnalysisFailed
}

// Transition validates a status change. Every path into Analyzed or an error
// state goes through Processing; Processing -> Processing is handled by the run lease.
func Transition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return &TransitionError{From: from, To: to}
	}
	switch from {
	case StatusAwaitingUpload, StatusAnalyzed, StatusProcessingFailed, StatusAnalysisFailed:
		if to == StatusProcessing {
			return nil
		}
	case StatusProcessing:
		if to == StatusAnalyzed || to.IsError() {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

// checkBegin decides whether a new run may take the lease on d.
func checkBegin(d Deal, now time.Time, staleAfter time.Duration) error {
	if d.Status == StatusProcessing {
		if d.RunStartedAt != nil && staleAfter > 0 && now.Sub(*d.RunStartedAt) >= staleAfter {
			return nil
		}
		return ErrRunInProgress
	}
	return Transition(d.Status, StatusProcessing)
}

// checkFinish validates the end of a run against the current lease holder.
func checkFinish(d Deal, runID string, to Status) error {
	if d.RunID != runID {
		return ErrRunSuperseded
	}
	return Transition(d.Status, to)
}
