package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeductionsBreakdown is retained verbatim alongside the detail row for audit
// and payslip rendering. Steps holds the typed outcome of every upstream
// contribution so degraded lookups are visible without grepping logs.
type DeductionsBreakdown struct {
	Currency           string                `json:"currency"`
	Taxes              decimal.Decimal       `json:"taxes"`
	Insurance          decimal.Decimal       `json:"insurance"`
	UnpaidLeavePenalty decimal.Decimal       `json:"unpaid_leave_penalty"`
	TimePenalty        decimal.Decimal       `json:"time_penalty"`
	Refunds            decimal.Decimal       `json:"refunds"`
	ComputedAt         time.Time             `json:"computed_at"`
	Steps              map[string]StepStatus `json:"steps,omitempty"`
}

func (b DeductionsBreakdown) TotalPenalties() decimal.Decimal {
	return b.UnpaidLeavePenalty.Add(b.TimePenalty)
}

// DetailBlob is the opaque structured column on EmployeePayrollDetail.
type DetailBlob struct {
	Breakdown DeductionsBreakdown `json:"breakdown"`
	Ledger    ExceptionLedger     `json:"ledger"`
}

type EmployeePayrollDetail struct {
	ID         int             `gorm:"primary_key" json:"id"`
	RunId      int             `gorm:"uniqueIndex:idx_detail_run_employee;not null" json:"run_id" binding:"required"`
	EmployeeId int             `gorm:"uniqueIndex:idx_detail_run_employee;not null" json:"employee_id" binding:"required"`
	BaseSalary decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_salary"`
	Allowances decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allowances"`
	Deductions decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"deductions"`
	NetSalary  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_salary"`
	NetPay     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_pay"`
	BankStatus BankStatus      `gorm:"type:enum('Verified','Missing');default:Missing" json:"bank_status"`
	Blob       []byte          `gorm:"type:json" json:"blob"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *EmployeePayrollDetail) GetBlob() (DetailBlob, error) {
	var blob DetailBlob
	if len(d.Blob) == 0 {
		return blob, nil
	}
	err := json.Unmarshal(d.Blob, &blob)
	return blob, err
}

func (d *EmployeePayrollDetail) SetBlob(blob DetailBlob) error {
	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	d.Blob = raw
	return nil
}

func GetEmployeePayrollDetail(ctx context.Context, runId int, employeeId int) (*EmployeePayrollDetail, error) {
	db := config.GetDB()
	var detail EmployeePayrollDetail
	err := db.WithContext(ctx).
		Where("run_id = ? AND employee_id = ?", runId, employeeId).
		First(&detail).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &detail, nil
}

func GetDetailsForRun(ctx context.Context, runId int) ([]*EmployeePayrollDetail, error) {
	db := config.GetDB()
	var details []*EmployeePayrollDetail
	err := db.WithContext(ctx).
		Where("run_id = ?", runId).
		Order("employee_id asc").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

// DeleteDetailsForRun clears every detail row before a draft regeneration
// (destructive-then-rebuild).
func DeleteDetailsForRun(tx *gorm.DB, runId int) error {
	return tx.Where("run_id = ?", runId).Delete(&EmployeePayrollDetail{}).Error
}

// SaveEmployeePayrollDetail persists the detail row and returns an error if a
// row for the (employee, run) pair already exists; drafts are rebuilt via
// DeleteDetailsForRun, never overwritten in place.
func SaveEmployeePayrollDetail(tx *gorm.DB, detail *EmployeePayrollDetail) error {
	return tx.Create(detail).Error
}

// UpdateDetailLedger rewrites the detail's blob after a ledger mutation.
func UpdateDetailLedger(tx *gorm.DB, detail *EmployeePayrollDetail, blob DetailBlob) error {
	if err := detail.SetBlob(blob); err != nil {
		return err
	}
	return tx.Model(&EmployeePayrollDetail{}).
		Where("id = ?", detail.ID).
		Update("blob", detail.Blob).Error
}
