package config

import (
	"os"
	"strconv"
	"strings"
)

// StrictRunImmutability enables fintech-grade guardrails:
// a Locked payroll run rejects every mutation path, including admin overrides,
// until it is explicitly unlocked with a reason.
//
// Set via env:
// - STRICT_RUN_IMMUTABLE=true
func StrictRunImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_RUN_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// DraftWorkerCount is the number of concurrent per-employee calculation
// workers used by draft generation. Defaults to 4; 1 disables parallelism.
//
// Set via env:
// - DRAFT_WORKER_COUNT=8
func DraftWorkerCount() int {
	raw := strings.TrimSpace(os.Getenv("DRAFT_WORKER_COUNT"))
	if raw == "" {
		return 4
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 4
	}
	return n
}
