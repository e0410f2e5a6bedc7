package models

import (
	"time"
)

// ExceptionEntry is one audit ledger row on an employee's payroll detail.
type ExceptionEntry struct {
	Code           ExceptionCode   `json:"code"`
	Message        string          `json:"message"`
	Timestamp      time.Time       `json:"timestamp"`
	Status         ExceptionStatus `json:"status"`
	ResolvedBy     string          `json:"resolved_by,omitempty"`
	ResolutionNote string          `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
}

// ExceptionLedger is the per-employee, per-run exception ledger stored inside
// the detail blob. Entries holds the working copies; History keeps the
// verbatim original of every resolved entry.
type ExceptionLedger struct {
	Entries []ExceptionEntry `json:"entries"`
	History []ExceptionEntry `json:"history,omitempty"`
}

// Flag appends an active entry. Repeated flags of the same condition append
// repeatedly; the ledger does not deduplicate.
func (l *ExceptionLedger) Flag(code ExceptionCode, message string, at time.Time) {
	l.Entries = append(l.Entries, ExceptionEntry{
		Code:      code,
		Message:   message,
		Timestamp: at,
		Status:    ExceptionStatusActive,
	})
}

// HasActive reports whether an unresolved entry with the code exists.
func (l *ExceptionLedger) HasActive(code ExceptionCode) bool {
	for i := range l.Entries {
		if l.Entries[i].Status == ExceptionStatusActive && l.Entries[i].Code == code {
			return true
		}
	}
	return false
}

func (l *ExceptionLedger) ActiveCount() int {
	count := 0
	for i := range l.Entries {
		if l.Entries[i].Status == ExceptionStatusActive {
			count++
		}
	}
	return count
}

// Resolve closes the first active entry matching code. The original entry is
// copied verbatim into History (tagged resolved with resolver metadata) before
// the working copy is cleared, so no audit information is lost. Returns false
// when no active entry matches.
func (l *ExceptionLedger) Resolve(code ExceptionCode, resolver string, note string, at time.Time) bool {
	for i := range l.Entries {
		if l.Entries[i].Status != ExceptionStatusActive || l.Entries[i].Code != code {
			continue
		}

		archived := l.Entries[i]
		archived.Status = ExceptionStatusResolved
		archived.ResolvedBy = resolver
		archived.ResolutionNote = note
		archived.ResolvedAt = &at
		l.History = append(l.History, archived)

		l.Entries[i].Code = ""
		l.Entries[i].Message = ""
		l.Entries[i].Status = ExceptionStatusResolved
		l.Entries[i].ResolvedBy = resolver
		l.Entries[i].ResolutionNote = note
		l.Entries[i].ResolvedAt = &at
		return true
	}
	return false
}
