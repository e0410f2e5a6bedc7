package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const trailingRunWindow = 12

var (
	spikeHardFactor = decimal.NewFromInt(2)
	spikeSoftFactor = decimal.RequireFromString("1.5")
)

// Irregularity is one post-calculation finding, already written through to the
// employee's ledger when returned.
type Irregularity struct {
	EmployeeId int                  `json:"employee_id"`
	Code       models.ExceptionCode `json:"code"`
	Message    string               `json:"message"`
}

// DetectIrregularities sweeps a run's details for conditions the calculation
// itself cannot see: negative raw net pay, unverified bank accounts, and base
// salaries spiking against the employee's own trailing history. Findings are
// flagged on each ledger and counted on the run. The sweep is idempotent; a
// condition already active on the ledger is not flagged twice.
func DetectIrregularities(ctx context.Context, runId int) ([]Irregularity, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	run, err := models.GetPayrollRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if err := run.EnsureMutable(); err != nil {
		return nil, err
	}

	details, err := models.GetDetailsForRun(ctx, runId)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	findings := []Irregularity{}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flagged := 0
		for _, detail := range details {
			blob, err := detail.GetBlob()
			if err != nil {
				config.LogError(logger, "irregularities.go", "DetectIrregularities", "GetBlob", detail.EmployeeId, err)
				continue
			}

			trailing, err := trailingBaseSalaries(tx, detail.EmployeeId, run.Period)
			if err != nil {
				config.LogError(logger, "irregularities.go", "DetectIrregularities", "trailingBaseSalaries", detail.EmployeeId, err)
				trailing = nil
			}

			detected := detectForDetail(detail, &blob, trailing)
			if len(detected) == 0 {
				continue
			}
			for _, finding := range detected {
				blob.Ledger.Flag(finding.Code, finding.Message, now)
				findings = append(findings, finding)
				flagged++
			}
			if err := models.UpdateDetailLedger(tx, detail, blob); err != nil {
				return err
			}
		}
		if flagged > 0 {
			return models.AdjustRunExceptionCount(tx, runId, flagged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// detectForDetail evaluates every irregularity rule against one detail row.
// Pure over its inputs apart from the message formatting.
func detectForDetail(detail *models.EmployeePayrollDetail, blob *models.DetailBlob, trailing []decimal.Decimal) []Irregularity {
	var findings []Irregularity

	flag := func(code models.ExceptionCode, message string) {
		if blob.Ledger.HasActive(code) {
			return
		}
		findings = append(findings, Irregularity{
			EmployeeId: detail.EmployeeId,
			Code:       code,
			Message:    message,
		})
	}

	// Net pay is floored at zero during calculation, so the raw figure has to
	// be rebuilt from the breakdown to see the shortfall.
	rawNetPay := detail.NetSalary.
		Sub(blob.Breakdown.TotalPenalties()).
		Add(blob.Breakdown.Refunds)
	if rawNetPay.IsNegative() {
		flag(models.ExceptionCodeNegativeNetPay,
			fmt.Sprintf("deductions and penalties exceed earnings by %s", rawNetPay.Neg().Round(2)))
	}

	if detail.BankStatus != models.BankStatusVerified {
		flag(models.ExceptionCodeMissingBankAccount,
			"no verified bank account on file; payment cannot be disbursed")
	}

	if avg := averageOf(trailing); avg.IsPositive() {
		switch {
		case detail.BaseSalary.GreaterThan(avg.Mul(spikeHardFactor)):
			flag(models.ExceptionCodeSalarySpike,
				fmt.Sprintf("base salary %s is more than double the trailing average %s over %d runs",
					detail.BaseSalary, avg.Round(2), len(trailing)))
		case detail.BaseSalary.GreaterThan(avg.Mul(spikeSoftFactor)):
			flag(models.ExceptionCodeSalarySpike,
				fmt.Sprintf("base salary %s exceeds 1.5x the trailing average %s over %d runs",
					detail.BaseSalary, avg.Round(2), len(trailing)))
		}
	}

	return findings
}

// trailingBaseSalaries returns the employee's base salaries from up to the
// last 12 locked or approved runs before the given period, newest first.
func trailingBaseSalaries(tx *gorm.DB, employeeId int, before time.Time) ([]decimal.Decimal, error) {
	var rows []struct {
		BaseSalary decimal.Decimal
	}
	err := tx.Table("employee_payroll_details").
		Select("employee_payroll_details.base_salary").
		Joins("JOIN payroll_runs ON payroll_runs.id = employee_payroll_details.run_id").
		Where("employee_payroll_details.employee_id = ?", employeeId).
		Where("payroll_runs.status IN ?", []models.PayrollRunStatus{
			models.PayrollRunStatusLocked,
			models.PayrollRunStatusApproved,
		}).
		Where("payroll_runs.period < ?", before).
		Order("payroll_runs.period desc").
		Limit(trailingRunWindow).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	salaries := make([]decimal.Decimal, 0, len(rows))
	for _, row := range rows {
		salaries = append(salaries, row.BaseSalary)
	}
	return salaries, nil
}

func averageOf(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
