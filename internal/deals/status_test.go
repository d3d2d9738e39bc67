package deals

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionAllowsOnlyPathsThroughProcessing(t *testing.T) {
	all := []Status{StatusAwaitingUpload, StatusProcessing, StatusAnalyzed, StatusProcessingFailed, StatusAnalysisFailed}
	allowed := map[[2]Status]bool{
		{StatusAwaitingUpload, StatusProcessing}:   true,
		{StatusProcessing, StatusAnalyzed}:         true,
		{StatusProcessing, StatusProcessingFailed}: true,
		{StatusProcessing, StatusAnalysisFailed}:   true,
		{StatusAnalyzed, StatusProcessing}:         true,
		{StatusProcessingFailed, StatusProcessing}: true,
		{StatusAnalysisFailed, StatusProcessing}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			err := Transition(from, to)
			if allowed[[2]Status{from, to}] {
				if err != nil {
					t.Fatalf("Transition(%s, %s) unexpected error: %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("Transition(%s, %s) expected ErrIllegalTransition, got %v", from, to, err)
			}
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	var te *TransitionError
	if err := Transition("3_Whatever", StatusProcessing); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestCheckBeginStaleLease(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Minute)
	stale := now.Add(-time.Hour)

	if err := checkBegin(Deal{Status: StatusProcessing, RunStartedAt: &fresh}, now, 15*time.Minute); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress for fresh lease, got %v", err)
	}
	if err := checkBegin(Deal{Status: StatusProcessing, RunStartedAt: &stale}, now, 15*time.Minute); err != nil {
		t.Fatalf("expected stale lease to be taken over, got %v", err)
	}
}
