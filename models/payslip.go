package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payslip is generated once per (employee, run), only after the run is Locked
// and its payment status is Paid. Rendering/delivery happens downstream of
// the notification sink; this backend only owns the record.
type Payslip struct {
	ID          int             `gorm:"primary_key" json:"id"`
	RunId       int             `gorm:"uniqueIndex:idx_payslip_run_employee;not null" json:"run_id"`
	EmployeeId  int             `gorm:"uniqueIndex:idx_payslip_run_employee;not null" json:"employee_id"`
	NetPay      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_pay"`
	Currency    string          `gorm:"size:10" json:"currency"`
	Breakdown   []byte          `gorm:"type:json" json:"breakdown"`
	GeneratedAt time.Time       `gorm:"not null" json:"generated_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// GeneratePayslips creates payslip rows for every detail in the run. It is
// idempotent: existing (employee, run) payslips are skipped, so the best-effort
// retry from Lock cannot duplicate.
func GeneratePayslips(tx *gorm.DB, run *PayrollRun) (int, error) {
	if run.Status != PayrollRunStatusLocked {
		return 0, errors.New("payslips require a locked run")
	}
	if run.PaymentStatus != PaymentStatusPaid {
		return 0, errors.New("payslips require a paid run")
	}

	var details []*EmployeePayrollDetail
	if err := tx.Where("run_id = ?", run.ID).Order("employee_id asc").Find(&details).Error; err != nil {
		return 0, err
	}

	currency := run.Currency()
	now := time.Now().UTC()
	generated := 0
	for _, detail := range details {
		var count int64
		if err := tx.Model(&Payslip{}).
			Where("run_id = ? AND employee_id = ?", run.ID, detail.EmployeeId).
			Count(&count).Error; err != nil {
			return generated, err
		}
		if count > 0 {
			continue
		}
		slip := Payslip{
			RunId:       run.ID,
			EmployeeId:  detail.EmployeeId,
			NetPay:      detail.NetPay,
			Currency:    currency,
			Breakdown:   detail.Blob,
			GeneratedAt: now,
		}
		if err := tx.Create(&slip).Error; err != nil {
			return generated, err
		}
		generated++
	}
	return generated, nil
}
