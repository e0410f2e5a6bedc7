package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"gorm.io/gorm"
)

// TransitionRun moves a run one step through the approval state machine. The
// read-modify-write happens under the run's advisory lock so a concurrent
// draft regeneration or competing transition cannot interleave.
func TransitionRun(ctx context.Context, runId int, to models.PayrollRunStatus, reason string) (*models.PayrollRun, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRunLock(tx, runId); err != nil {
			return err
		}
		defer ReleaseRunLock(tx, runId)

		var run models.PayrollRun
		if err := tx.First(&run, runId).Error; err != nil {
			return err
		}
		if err := run.ApplyTransition(ctx, tx, to, reason); err != nil {
			return err
		}

		switch to {
		case models.PayrollRunStatusLocked:
			if err := models.PublishPayrollEvent(ctx, tx, runId, 0, models.PayrollEventRunLocked, nil); err != nil {
				return err
			}
			if err := models.MarkAdjustmentsPaid(tx, runId); err != nil {
				return err
			}
			// Payslip generation rides on the lock but never blocks it.
			generatePayslipsBestEffort(ctx, tx, &run)
		case models.PayrollRunStatusUnlocked:
			if err := models.PublishPayrollEvent(ctx, tx, runId, 0, models.PayrollEventRunUnlocked, map[string]string{
				"reason": reason,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*models.InvalidTransitionError); !ok {
			config.LogError(logger, "runLifecycle.go", "TransitionRun", string(to), runId, err)
		}
		return nil, err
	}

	return models.GetPayrollRun(ctx, runId)
}

// LockRun finalizes an approved run.
func LockRun(ctx context.Context, runId int) (*models.PayrollRun, error) {
	return TransitionRun(ctx, runId, models.PayrollRunStatusLocked, "")
}

// UnlockRun reopens a locked run for correction. The reason is mandatory and
// audited on the run row.
func UnlockRun(ctx context.Context, runId int, reason string) (*models.PayrollRun, error) {
	return TransitionRun(ctx, runId, models.PayrollRunStatusUnlocked, reason)
}

// FreezeRun and UnfreezeRun are the older client-facing names for the same
// operations; some payroll desks still call them that.
func FreezeRun(ctx context.Context, runId int) (*models.PayrollRun, error) {
	return LockRun(ctx, runId)
}

func UnfreezeRun(ctx context.Context, runId int, reason string) (*models.PayrollRun, error) {
	return UnlockRun(ctx, runId, reason)
}

// MarkRunPaid records disbursement. When the run is already locked this is
// the second half of the Locked+Paid condition, so payslips are generated
// here as well.
func MarkRunPaid(ctx context.Context, runId int) (*models.PayrollRun, error) {
	db := config.GetDB()

	run, err := models.MarkPaid(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status == models.PayrollRunStatusLocked {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			generatePayslipsBestEffort(ctx, tx, run)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return run, nil
}

// generatePayslipsBestEffort generates payslips when the run is both Locked
// and Paid. Failures are logged and swallowed; payslips can be regenerated
// later and must never roll back the lock or the payment flag.
func generatePayslipsBestEffort(ctx context.Context, tx *gorm.DB, run *models.PayrollRun) {
	logger := config.GetLogger()

	if run.PaymentStatus != models.PaymentStatusPaid {
		return
	}
	generated, err := models.GeneratePayslips(tx, run)
	if err != nil {
		config.LogError(logger, "runLifecycle.go", "generatePayslipsBestEffort", "GeneratePayslips", run.ID, err)
		return
	}
	if generated > 0 {
		if err := models.PublishPayrollEvent(ctx, tx, run.ID, 0, models.PayrollEventPayslipsGenerated, map[string]int{
			"generated": generated,
		}); err != nil {
			config.LogError(logger, "runLifecycle.go", "generatePayslipsBestEffort", "PublishPayrollEvent", run.ID, err)
		}
	}
}
