package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// SalaryOverride replaces the pay-grade base salary for one employee in one
// run. The override is flagged on the ledger when it disagrees with the
// approved grade so reviewers always see it.
type SalaryOverride struct {
	ID         int             `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	RunId      int             `gorm:"uniqueIndex:idx_override_run_employee" json:"run_id"`
	EmployeeId int             `gorm:"uniqueIndex:idx_override_run_employee" json:"employee_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	CreatedBy  int             `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UpsertSalaryOverride records or replaces the override for one employee in a
// mutable run. Negative amounts are rejected; zero is a valid override.
func UpsertSalaryOverride(ctx context.Context, runId int, employeeId int, amount decimal.Decimal) (*SalaryOverride, error) {
	db := config.GetDB()

	run, err := GetPayrollRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if err := run.EnsureMutable(); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, errors.New("override amount cannot be negative")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	override := &SalaryOverride{
		RunId:      runId,
		EmployeeId: employeeId,
		Amount:     amount,
		CreatedBy:  userId,
	}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "employee_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "created_by", "updated_at"}),
		}).
		Create(override).Error
	if err != nil {
		config.LogError(config.GetLogger(), "salaryOverride.go", "UpsertSalaryOverride", "Create", override, err)
		return nil, err
	}
	return override, nil
}

// GetSalaryOverrides returns the overrides of a run keyed by employee id.
func GetSalaryOverrides(ctx context.Context, runId int) (map[int]decimal.Decimal, error) {
	db := config.GetDB()

	var overrides []*SalaryOverride
	err := db.WithContext(ctx).Where("run_id = ?", runId).Find(&overrides).Error
	if err != nil {
		config.LogError(config.GetLogger(), "salaryOverride.go", "GetSalaryOverrides", "Find", runId, err)
		return nil, err
	}

	result := make(map[int]decimal.Decimal, len(overrides))
	for _, override := range overrides {
		result[override.EmployeeId] = override.Amount
	}
	return result, nil
}
