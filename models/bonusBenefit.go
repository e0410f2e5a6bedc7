package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmployeeAdjustment is a signing-bonus or termination-benefit record
// synthesized by the hr-event processors during draft generation. Only
// Approved amounts are folded into net pay; Paid marks that the folding
// happened in a locked run.
type EmployeeAdjustment struct {
	ID         int              `gorm:"primary_key" json:"id"`
	RunId      int              `gorm:"index;not null" json:"run_id" binding:"required"`
	EmployeeId int              `gorm:"index;not null" json:"employee_id" binding:"required"`
	Type       AdjustmentType   `gorm:"type:enum('SigningBonus','TerminationBenefit');not null" json:"type" binding:"required"`
	ConfigId   int              `gorm:"index" json:"config_id"`
	Amount     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status     AdjustmentStatus `gorm:"type:enum('Pending','Approved','Rejected','Paid');default:Pending;index" json:"status"`
	DecidedBy  int              `gorm:"default:0" json:"decided_by"`
	DecidedAt  *time.Time       `json:"decided_at"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreatePendingAdjustment writes a Pending adjustment inside the caller's
// transaction; duplicates per (run, employee, type) are skipped.
func CreatePendingAdjustment(tx *gorm.DB, adjustment *EmployeeAdjustment) error {
	var count int64
	err := tx.Model(&EmployeeAdjustment{}).
		Where("run_id = ? AND employee_id = ? AND type = ?",
			adjustment.RunId, adjustment.EmployeeId, adjustment.Type).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	adjustment.Status = AdjustmentStatusPending
	return tx.Create(adjustment).Error
}

// GetApprovedAdjustmentTotals returns, per employee, the sum of approved
// adjustment amounts for the run.
func GetApprovedAdjustmentTotals(ctx context.Context, runId int) (map[int]decimal.Decimal, error) {
	db := config.GetDB()
	var adjustments []*EmployeeAdjustment
	err := db.WithContext(ctx).
		Where("run_id = ? AND status = ?", runId, AdjustmentStatusApproved).
		Order("id asc").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[int]decimal.Decimal, len(adjustments))
	for _, adj := range adjustments {
		totals[adj.EmployeeId] = totals[adj.EmployeeId].Add(adj.Amount)
	}
	return totals, nil
}

// DecideAdjustment approves or rejects a pending adjustment. Requires the
// Manager role and an unlocked run.
func DecideAdjustment(ctx context.Context, adjustmentId int, approve bool) (*EmployeeAdjustment, error) {
	db := config.GetDB()

	managerId, err := RequireRole(ctx, UserRoleManager)
	if err != nil {
		return nil, err
	}

	adjustment, err := utils.FetchSingleModel[EmployeeAdjustment](ctx, adjustmentId)
	if err != nil {
		return nil, err
	}
	if adjustment.Status != AdjustmentStatusPending {
		return nil, errors.New("only a pending adjustment can be decided")
	}

	run, err := GetPayrollRun(ctx, adjustment.RunId)
	if err != nil {
		return nil, err
	}
	if err := run.EnsureMutable(); err != nil {
		return nil, err
	}

	status := AdjustmentStatusRejected
	if approve {
		status = AdjustmentStatusApproved
	}
	now := time.Now().UTC()
	err = db.WithContext(ctx).Model(&EmployeeAdjustment{}).
		Where("id = ? AND status = ?", adjustmentId, AdjustmentStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": managerId,
			"decided_at": &now,
		}).Error
	if err != nil {
		return nil, err
	}
	adjustment.Status = status
	adjustment.DecidedBy = managerId
	adjustment.DecidedAt = &now
	return adjustment, nil
}

// MarkAdjustmentsPaid flips approved adjustments to Paid once the run locks.
func MarkAdjustmentsPaid(tx *gorm.DB, runId int) error {
	return tx.Model(&EmployeeAdjustment{}).
		Where("run_id = ? AND status = ?", runId, AdjustmentStatusApproved).
		Update("status", AdjustmentStatusPaid).Error
}
