package models

import (
	"testing"
	"time"
)

func TestLedgerFlag_DoesNotDeduplicate(t *testing.T) {
	var ledger ExceptionLedger
	now := time.Now().UTC()

	ledger.Flag(ExceptionCodeMissingBankAccount, "first", now)
	ledger.Flag(ExceptionCodeMissingBankAccount, "second", now)

	if len(ledger.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ledger.Entries))
	}
	if ledger.ActiveCount() != 2 {
		t.Fatalf("expected 2 active, got %d", ledger.ActiveCount())
	}
}

func TestLedgerResolve_ArchivesVerbatimOriginal(t *testing.T) {
	var ledger ExceptionLedger
	flagged := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	resolved := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

	ledger.Flag(ExceptionCodeSalarySpike, "base salary doubled", flagged)

	if !ledger.Resolve(ExceptionCodeSalarySpike, "finance.lead", "verified promotion", resolved) {
		t.Fatal("Resolve returned false for an active entry")
	}

	// Working copy is cleared but stays in place.
	entry := ledger.Entries[0]
	if entry.Code != "" || entry.Message != "" {
		t.Fatalf("working copy not cleared: code=%q message=%q", entry.Code, entry.Message)
	}
	if entry.Status != ExceptionStatusResolved {
		t.Fatalf("working copy status = %s, want Resolved", entry.Status)
	}

	// History keeps the original code and message with resolver metadata.
	if len(ledger.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(ledger.History))
	}
	archived := ledger.History[0]
	if archived.Code != ExceptionCodeSalarySpike || archived.Message != "base salary doubled" {
		t.Fatalf("history lost the original: code=%q message=%q", archived.Code, archived.Message)
	}
	if archived.Timestamp != flagged {
		t.Fatalf("history timestamp = %v, want original flag time %v", archived.Timestamp, flagged)
	}
	if archived.ResolvedBy != "finance.lead" || archived.ResolutionNote != "verified promotion" {
		t.Fatal("history missing resolver metadata")
	}
	if archived.ResolvedAt == nil || !archived.ResolvedAt.Equal(resolved) {
		t.Fatalf("history ResolvedAt = %v, want %v", archived.ResolvedAt, resolved)
	}

	if ledger.ActiveCount() != 0 {
		t.Fatalf("expected 0 active after resolve, got %d", ledger.ActiveCount())
	}
}

func TestLedgerResolve_FirstMatchingOnly(t *testing.T) {
	var ledger ExceptionLedger
	now := time.Now().UTC()

	ledger.Flag(ExceptionCodeNegativeNetPay, "first", now)
	ledger.Flag(ExceptionCodeNegativeNetPay, "second", now)

	if !ledger.Resolve(ExceptionCodeNegativeNetPay, "hr", "", now) {
		t.Fatal("Resolve returned false")
	}
	if ledger.ActiveCount() != 1 {
		t.Fatalf("expected 1 active left, got %d", ledger.ActiveCount())
	}
	if ledger.Entries[1].Message != "second" {
		t.Fatal("resolve must close the first matching entry")
	}
}

func TestLedgerResolve_NoMatch(t *testing.T) {
	var ledger ExceptionLedger
	now := time.Now().UTC()
	ledger.Flag(ExceptionCodeSalarySpike, "spike", now)

	if ledger.Resolve(ExceptionCodeMissingBankAccount, "hr", "", now) {
		t.Fatal("Resolve must return false when no active entry matches")
	}
	if ledger.ActiveCount() != 1 {
		t.Fatal("non-matching resolve must not touch active entries")
	}
}

func TestLedgerHasActive(t *testing.T) {
	var ledger ExceptionLedger
	now := time.Now().UTC()
	ledger.Flag(ExceptionCodeCalcError, "boom", now)

	if !ledger.HasActive(ExceptionCodeCalcError) {
		t.Fatal("expected active CALC_ERROR")
	}
	ledger.Resolve(ExceptionCodeCalcError, "ops", "", now)
	if ledger.HasActive(ExceptionCodeCalcError) {
		t.Fatal("resolved entry must not count as active")
	}
}
