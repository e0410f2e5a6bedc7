// export-run-summary writes one payroll run's summary workbook to disk.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/export-run-summary -run-id 42 -out run-42.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/workflow"
)

func main() {
	runId := flag.Int("run-id", 0, "payroll run id (required)")
	out := flag.String("out", "", "output file path (required)")
	currency := flag.String("currency", "", "display currency ISO code (optional)")
	flag.Parse()

	if *runId <= 0 || *out == "" {
		fmt.Fprintln(os.Stderr, "-run-id and -out are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := workflow.ExportRunSummary(context.Background(), *runId, *currency, f); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported run %d to %s\n", *runId, *out)
}
