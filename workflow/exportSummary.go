package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Sheet1"

// displayAmount renders a money cell, converting from the run currency when a
// different display currency was requested.
func displayAmount(ctx context.Context, provider models.ExchangeRateProvider, amount decimal.Decimal, from string, to string) string {
	if to == "" || to == from {
		return amount.String()
	}
	return models.ConvertAmount(ctx, provider, amount, from, to).String()
}

// ExportRunSummary writes the run's per-employee figures as an xlsx workbook.
// Rows follow the stored detail order (employee id ascending). A non-empty
// displayCurrency converts every money column from the run currency using the
// stored exchange rates.
func ExportRunSummary(ctx context.Context, runId int, displayCurrency string, w io.Writer) error {
	run, err := models.GetPayrollRun(ctx, runId)
	if err != nil {
		return err
	}
	details, err := models.GetDetailsForRun(ctx, runId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue(summarySheet, "A1", "EmployeeId")
	f.SetCellValue(summarySheet, "B1", "BaseSalary")
	f.SetCellValue(summarySheet, "C1", "Allowances")
	f.SetCellValue(summarySheet, "D1", "Deductions")
	f.SetCellValue(summarySheet, "E1", "Penalties")
	f.SetCellValue(summarySheet, "F1", "Refunds")
	f.SetCellValue(summarySheet, "G1", "NetPay")
	f.SetCellValue(summarySheet, "H1", "ActiveExceptions")

	currency := run.Currency()
	displayCurrency = strings.ToUpper(strings.TrimSpace(displayCurrency))
	var provider models.ExchangeRateProvider = &models.DBRateProvider{}

	for i, detail := range details {
		row := fmt.Sprint(i + 2)

		blob, err := detail.GetBlob()
		if err != nil {
			config.LogError(config.GetLogger(), "exportSummary.go", "ExportRunSummary", "GetBlob", detail.EmployeeId, err)
		}

		f.SetCellValue(summarySheet, "A"+row, detail.EmployeeId)
		f.SetCellValue(summarySheet, "B"+row, displayAmount(ctx, provider, detail.BaseSalary, currency, displayCurrency))
		f.SetCellValue(summarySheet, "C"+row, displayAmount(ctx, provider, detail.Allowances, currency, displayCurrency))
		f.SetCellValue(summarySheet, "D"+row, displayAmount(ctx, provider, detail.Deductions, currency, displayCurrency))
		f.SetCellValue(summarySheet, "E"+row, displayAmount(ctx, provider, blob.Breakdown.TotalPenalties(), currency, displayCurrency))
		f.SetCellValue(summarySheet, "F"+row, displayAmount(ctx, provider, blob.Breakdown.Refunds, currency, displayCurrency))
		f.SetCellValue(summarySheet, "G"+row, displayAmount(ctx, provider, detail.NetPay, currency, displayCurrency))
		f.SetCellValue(summarySheet, "H"+row, blob.Ledger.ActiveCount())
	}

	totalCurrency := currency
	if displayCurrency != "" {
		totalCurrency = displayCurrency
	}
	totalRow := fmt.Sprint(len(details) + 3)
	f.SetCellValue(summarySheet, "A"+totalRow, "Total ("+totalCurrency+")")
	f.SetCellValue(summarySheet, "G"+totalRow, displayAmount(ctx, provider, run.TotalNetPay, currency, displayCurrency))
	f.SetCellValue(summarySheet, "H"+totalRow, run.Exceptions)

	return f.Write(w)
}
