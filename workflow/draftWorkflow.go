package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// sharedRunConfig is the read-only configuration loaded once per draft
// generation and shared by every employee's calculation.
type sharedRunConfig struct {
	TaxBrackets       []*models.TaxBracket
	InsuranceBrackets []*models.InsuranceBracket
	Allowances        []*models.AllowanceConfig
	MinimumWage       decimal.Decimal
	Currency          string
	Now               time.Time
}

// GenerateDraft runs the full draft pipeline for one run: hr-event
// processing, destructive detail rebuild, parallel per-employee calculation,
// and a single-writer fan-in of the run aggregates. Generation is
// single-flight per run; a second concurrent call blocks on the advisory lock
// and then rebuilds from the same upstream data, which yields the same rows.
func GenerateDraft(ctx context.Context, runId int) (*models.PayrollRun, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	run, err := models.GetPayrollRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status != models.PayrollRunStatusDraft && run.Status != models.PayrollRunStatusUnlocked {
		return nil, errors.New("draft generation requires a Draft or Unlocked run")
	}

	// Best-effort fast-fail across instances; the advisory lock below is the
	// authoritative serializer.
	if redisLock := obtainRedisRunLock(runId, 5*time.Minute); redisLock != nil {
		defer redisLock.Release(config.GetRedisContext())
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRunLock(tx, runId); err != nil {
			return err
		}
		defer ReleaseRunLock(tx, runId)

		// Re-read under the lock: another generation may have just finished.
		var lockedRun models.PayrollRun
		if err := tx.First(&lockedRun, runId).Error; err != nil {
			return err
		}
		if err := lockedRun.EnsureMutable(); err != nil {
			return err
		}

		if err := ProcessHREvents(ctx, tx, logger, &lockedRun); err != nil {
			return err
		}

		if err := models.DeleteDetailsForRun(tx, runId); err != nil {
			config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "DeleteDetailsForRun", runId, err)
			return err
		}

		employees, err := models.GetPayableEmployees(ctx, lockedRun.Period)
		if err != nil {
			config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "GetPayableEmployees", runId, err)
			return err
		}

		shared, err := loadSharedRunConfig(ctx, &lockedRun)
		if err != nil {
			return err
		}

		adjustmentTotals, err := models.GetApprovedAdjustmentTotals(ctx, runId)
		if err != nil {
			config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "GetApprovedAdjustmentTotals", runId, err)
			return err
		}

		overrides, err := models.GetSalaryOverrides(ctx, runId)
		if err != nil {
			return err
		}

		inputs := make([]CalculationInput, 0, len(employees))
		for _, employee := range employees {
			input := loadEmployeeInput(ctx, logger, employee, &lockedRun, shared)
			if amount, ok := overrides[employee.ID]; ok {
				input.OverrideBaseSalary = &amount
			}
			inputs = append(inputs, input)
		}

		results := ComputeAll(inputs, config.DraftWorkerCount())

		// Single-writer fan-in: details persisted and aggregates summed in
		// ascending employee id order so regeneration is deterministic.
		totalNetPay := decimal.Zero
		totalExceptions := 0
		for i, employee := range employees {
			result := results[i]

			refundErr := models.MarkRefundsPaidInRun(tx, result.RefundIds, runId)
			if refundErr != nil {
				// Refund write-back failure must not roll back the draft; the
				// refund stays counted and the gap is surfaced on the ledger.
				config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "MarkRefundsPaidInRun", employee.ID, refundErr)
				result.Ledger.Flag(models.ExceptionCodeRefundMarkFailed,
					"refund paid-in-run write-back failed; refunds remain pending upstream", shared.Now)
			}

			activeExceptions := result.Ledger.ActiveCount()
			detail, err := buildDetail(&lockedRun, employee, result, adjustmentTotals[employee.ID])
			if err != nil {
				// One employee failing to assemble must not abort the run;
				// a zeroed row carrying CALC_ERROR is stored instead.
				config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "buildDetail", employee.ID, err)
				detail = calcErrorDetail(&lockedRun, employee, shared.Now)
				activeExceptions = 1
			}
			if err := models.SaveEmployeePayrollDetail(tx, detail); err != nil {
				config.LogError(logger, "draftWorkflow.go", "GenerateDraft", "SaveEmployeePayrollDetail", employee.ID, err)
				return err
			}

			totalNetPay = totalNetPay.Add(detail.NetPay)
			totalExceptions += activeExceptions
		}

		if err := models.SetRunAggregates(tx, runId, len(employees), totalExceptions, totalNetPay.Round(2)); err != nil {
			return err
		}

		return models.PublishPayrollEvent(ctx, tx, runId, 0, models.PayrollEventDraftGenerated, map[string]interface{}{
			"employees":     len(employees),
			"exceptions":    totalExceptions,
			"total_net_pay": totalNetPay.Round(2),
		})
	})
	if err != nil {
		return nil, err
	}

	return models.GetPayrollRun(ctx, runId)
}

// ComputeAll fans the calculation out over a bounded worker pool and returns
// results positionally aligned with inputs. Calculation is pure, so the pool
// size only changes throughput, never results.
func ComputeAll(inputs []CalculationInput, workers int) []CalculationResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]CalculationResult, len(inputs))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = Calculate(inputs[i])
			}
		}()
	}
	for i := range inputs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func loadSharedRunConfig(ctx context.Context, run *models.PayrollRun) (*sharedRunConfig, error) {
	logger := config.GetLogger()

	taxBrackets, err := models.GetApprovedTaxBrackets(ctx)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadSharedRunConfig", "GetApprovedTaxBrackets", run.ID, err)
		return nil, err
	}
	insuranceBrackets, err := models.GetApprovedInsuranceBrackets(ctx)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadSharedRunConfig", "GetApprovedInsuranceBrackets", run.ID, err)
		return nil, err
	}
	allowances, err := models.GetApprovedAllowances(ctx)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadSharedRunConfig", "GetApprovedAllowances", run.ID, err)
		return nil, err
	}

	return &sharedRunConfig{
		TaxBrackets:       taxBrackets,
		InsuranceBrackets: insuranceBrackets,
		Allowances:        allowances,
		MinimumWage:       models.GetStatutoryMinimumWage(),
		Currency:          run.Currency(),
		Now:               time.Now().UTC(),
	}, nil
}

// loadEmployeeInput assembles one employee's calculation input. Upstream
// lookup failures degrade the affected step to a zero contribution instead of
// failing the employee; only directory-level inconsistencies are hard
// failures, and those surface as CALC_ERROR via the zeroed input.
func loadEmployeeInput(ctx context.Context, logger *logrus.Logger, employee *models.Employee, run *models.PayrollRun, shared *sharedRunConfig) CalculationInput {
	steps := map[string]models.StepStatus{
		StepGrade:  models.StepStatusOk,
		StepLeave:  models.StepStatusOk,
		StepTime:   models.StepStatusOk,
		StepRefund: models.StepStatusOk,
	}

	input := CalculationInput{
		EmployeeId:        employee.ID,
		Period:            run.Period,
		Currency:          shared.Currency,
		StartDate:         employee.StartDate,
		EndDate:           employee.EndDate,
		MinimumWage:       shared.MinimumWage,
		TaxBrackets:       shared.TaxBrackets,
		InsuranceBrackets: shared.InsuranceBrackets,
		Allowances:        shared.Allowances,
		Steps:             steps,
		Now:               shared.Now,
	}

	grade, err := models.GetApprovedPayGrade(ctx, employee.PayGradeId)
	switch {
	case err == nil:
		input.PayGrade = grade
	case !errors.Is(err, utils.ErrorRecordNotFound):
		// A transient lookup failure is not a missing grade.
		config.LogError(logger, "draftWorkflow.go", "loadEmployeeInput", "GetApprovedPayGrade", employee.ID, err)
		steps[StepGrade] = models.StepStatusDegraded
	}

	gradeLabel := ""
	if input.PayGrade != nil {
		gradeLabel = input.PayGrade.Label
	}
	input.Attributes = models.EmployeeAttributes{
		PositionTitle:  employee.PositionTitle,
		DepartmentName: employee.DepartmentName,
		PayGradeLabel:  gradeLabel,
		ContractType:   employee.ContractType,
		WorkType:       employee.WorkType,
	}

	leaves, err := models.GetApprovedLeaveRequests(ctx, employee.ID, run.Period)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadEmployeeInput", "GetApprovedLeaveRequests", employee.ID, err)
		steps[StepLeave] = models.StepStatusDegraded
	} else {
		input.LeaveRequests = leaves
	}

	attendance, err := models.GetFinalizedAttendance(ctx, employee.ID, run.Period)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadEmployeeInput", "GetFinalizedAttendance", employee.ID, err)
		steps[StepTime] = models.StepStatusDegraded
	} else {
		input.Attendance = attendance
	}
	if steps[StepTime] == models.StepStatusOk {
		timeExceptions, err := models.GetTimeExceptions(ctx, employee.ID, run.Period)
		if err != nil {
			config.LogError(logger, "draftWorkflow.go", "loadEmployeeInput", "GetTimeExceptions", employee.ID, err)
			steps[StepTime] = models.StepStatusDegraded
			input.Attendance = nil
		} else {
			input.TimeExceptions = timeExceptions
		}
	}

	refunds, err := models.GetPendingRefunds(ctx, employee.ID)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "loadEmployeeInput", "GetPendingRefunds", employee.ID, err)
		steps[StepRefund] = models.StepStatusDegraded
	} else {
		input.Refunds = refunds
	}

	return input
}

// buildDetail converts one calculation result into the persisted detail row,
// folding approved bonus/benefit amounts into net pay.
func buildDetail(run *models.PayrollRun, employee *models.Employee, result CalculationResult, adjustments decimal.Decimal) (*models.EmployeePayrollDetail, error) {
	netPay := result.NetPay
	if adjustments.IsPositive() {
		netPay = netPay.Add(adjustments).Round(2)
	}

	detail := &models.EmployeePayrollDetail{
		RunId:      run.ID,
		EmployeeId: employee.ID,
		BaseSalary: result.BaseSalary,
		Allowances: result.Allowances,
		Deductions: result.Deductions(),
		NetSalary:  result.NetSalary,
		NetPay:     netPay,
		BankStatus: employee.BankStatus,
	}
	if err := detail.SetBlob(models.DetailBlob{
		Breakdown: result.Breakdown,
		Ledger:    result.Ledger,
	}); err != nil {
		return nil, err
	}
	return detail, nil
}

// calcErrorDetail is the stand-in row for an employee whose result could not
// be assembled. All amounts zero, single active CALC_ERROR entry.
func calcErrorDetail(run *models.PayrollRun, employee *models.Employee, now time.Time) *models.EmployeePayrollDetail {
	var ledger models.ExceptionLedger
	ledger.Flag(models.ExceptionCodeCalcError, "payroll detail could not be assembled for this employee", now)

	detail := &models.EmployeePayrollDetail{
		RunId:      run.ID,
		EmployeeId: employee.ID,
		BaseSalary: decimal.Zero,
		Allowances: decimal.Zero,
		Deductions: decimal.Zero,
		NetSalary:  decimal.Zero,
		NetPay:     decimal.Zero,
		BankStatus: employee.BankStatus,
	}
	// A ledger-only blob always marshals.
	_ = detail.SetBlob(models.DetailBlob{Ledger: ledger})
	return detail
}
