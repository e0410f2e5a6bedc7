package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"gorm.io/gorm"
)

// ResolveEmployeeException closes the first active ledger entry with the
// given code on one employee's detail. The run-level counter is decremented
// only when the employee has no active entries left, so a run with a
// multi-exception employee still shows that employee as outstanding.
func ResolveEmployeeException(ctx context.Context, runId int, employeeId int, code models.ExceptionCode, note string) (*models.DetailBlob, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	run, err := models.GetPayrollRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if err := run.EnsureMutable(); err != nil {
		return nil, err
	}

	resolver, _ := utils.GetUsernameFromContext(ctx)
	if resolver == "" {
		return nil, errors.New("resolver identity is required")
	}

	var blob models.DetailBlob
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detail, err := models.GetEmployeePayrollDetail(ctx, runId, employeeId)
		if err != nil {
			return err
		}
		blob, err = detail.GetBlob()
		if err != nil {
			return err
		}

		if !blob.Ledger.Resolve(code, resolver, note, time.Now().UTC()) {
			return errors.New("no active exception with that code for this employee")
		}
		if err := models.UpdateDetailLedger(tx, detail, blob); err != nil {
			return err
		}

		if blob.Ledger.ActiveCount() == 0 {
			if err := models.AdjustRunExceptionCount(tx, runId, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "resolveException.go", "ResolveEmployeeException", string(code), employeeId, err)
		return nil, err
	}
	return &blob, nil
}
