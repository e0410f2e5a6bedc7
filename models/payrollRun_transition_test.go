package models

import (
	"strings"
	"testing"
)

var allRunStatuses = []PayrollRunStatus{
	PayrollRunStatusDraft,
	PayrollRunStatusUnderReview,
	PayrollRunStatusPendingFinanceApproval,
	PayrollRunStatusApproved,
	PayrollRunStatusLocked,
	PayrollRunStatusUnlocked,
	PayrollRunStatusRejected,
}

func TestCanTransition_FullClosure(t *testing.T) {
	allowed := map[[2]PayrollRunStatus]bool{
		{PayrollRunStatusDraft, PayrollRunStatusUnderReview}:                       true,
		{PayrollRunStatusDraft, PayrollRunStatusRejected}:                          true,
		{PayrollRunStatusUnderReview, PayrollRunStatusPendingFinanceApproval}:      true,
		{PayrollRunStatusUnderReview, PayrollRunStatusRejected}:                    true,
		{PayrollRunStatusPendingFinanceApproval, PayrollRunStatusApproved}:         true,
		{PayrollRunStatusPendingFinanceApproval, PayrollRunStatusRejected}:         true,
		{PayrollRunStatusApproved, PayrollRunStatusLocked}:                         true,
		{PayrollRunStatusLocked, PayrollRunStatusUnlocked}:                         true,
		{PayrollRunStatusUnlocked, PayrollRunStatusLocked}:                         true,
	}

	for _, from := range allRunStatuses {
		for _, to := range allRunStatuses {
			want := allowed[[2]PayrollRunStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestRejectedIsTerminal(t *testing.T) {
	if targets := AllowedTransitions(PayrollRunStatusRejected); len(targets) != 0 {
		t.Fatalf("Rejected must have no transition targets, got %v", targets)
	}
}

func TestInvalidTransitionError_NamesAllowedSet(t *testing.T) {
	err := newInvalidTransitionError(PayrollRunStatusDraft, PayrollRunStatusLocked)
	msg := err.Error()
	if !strings.Contains(msg, "Draft") || !strings.Contains(msg, "Locked") {
		t.Fatalf("error must name the attempted pair: %q", msg)
	}
	if !strings.Contains(msg, "UnderReview") || !strings.Contains(msg, "Rejected") {
		t.Fatalf("error must name the allowed targets: %q", msg)
	}
}

func TestInvalidTransitionError_TerminalState(t *testing.T) {
	err := newInvalidTransitionError(PayrollRunStatusRejected, PayrollRunStatusDraft)
	if !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("terminal state error should say so: %q", err.Error())
	}
}

func TestValidateUnlockReason(t *testing.T) {
	cases := []struct {
		reason string
		ok     bool
	}{
		{"fix", false},
		{"         ", false},
		{"  padded  ", false},
		{"correction", true},          // exactly 10 chars
		{"tax rate was wrong", true},
		{"   tax rate was wrong   ", true},
	}
	for _, c := range cases {
		err := ValidateUnlockReason(c.reason)
		if c.ok && err != nil {
			t.Errorf("ValidateUnlockReason(%q) = %v, want nil", c.reason, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ValidateUnlockReason(%q) = nil, want error", c.reason)
		}
	}
}

func TestEnsureMutable(t *testing.T) {
	run := &PayrollRun{Status: PayrollRunStatusLocked}
	if err := run.EnsureMutable(); err == nil {
		t.Fatal("locked run must refuse mutation")
	}
	for _, status := range allRunStatuses {
		if status == PayrollRunStatusLocked {
			continue
		}
		run.Status = status
		if err := run.EnsureMutable(); err != nil {
			t.Errorf("EnsureMutable() in %s = %v, want nil", status, err)
		}
	}
}

func TestParsePayrollRunStatus(t *testing.T) {
	for _, status := range allRunStatuses {
		parsed, err := ParsePayrollRunStatus(string(status))
		if err != nil || parsed != status {
			t.Errorf("ParsePayrollRunStatus(%q) = %v, %v", status, parsed, err)
		}
	}
	if _, err := ParsePayrollRunStatus("Frozen"); err == nil {
		t.Fatal("unknown status must not parse")
	}
}
