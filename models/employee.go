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

// Employee is the directory read model consumed by the payroll core. Master
// data maintenance happens upstream; this backend only reads it, except for
// the hr-event processed flags written by draft generation.
type Employee struct {
	ID             int            `gorm:"primary_key" json:"id"`
	FullName       string         `gorm:"size:255;not null" json:"full_name" binding:"required"`
	PositionTitle  string         `gorm:"size:100" json:"position_title"`
	DepartmentName string         `gorm:"size:100" json:"department_name"`
	ContractType   string         `gorm:"size:50" json:"contract_type"`
	WorkType       string         `gorm:"size:50" json:"work_type"`
	PayGradeId     int            `gorm:"index" json:"pay_grade_id"`
	StartDate      *time.Time     `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
	Status         EmployeeStatus `gorm:"type:enum('Active','Terminated');default:Active;index" json:"status"`
	BankStatus     BankStatus     `gorm:"type:enum('Verified','Missing');default:Missing" json:"bank_status"`

	// Set once the corresponding hr-event adjustment has been synthesized,
	// so repeated draft generations do not duplicate it.
	SigningBonusProcessed       *bool `gorm:"default:false" json:"signing_bonus_processed"`
	TerminationBenefitProcessed *bool `gorm:"default:false" json:"termination_benefit_processed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type PayGrade struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Label      string          `gorm:"size:100;not null" json:"label" binding:"required"`
	BaseSalary decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_salary"`
	Status     ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	return utils.FetchSingleModel[Employee](ctx, id)
}

// GetPayableEmployees returns the employees whose contract window intersects
// the run's calendar month, in id order. An employee terminated mid-month
// stays payable for that month so the final prorated pay and any approved
// termination benefit land on its run. Terminated employees without an end
// date are excluded.
func GetPayableEmployees(ctx context.Context, period time.Time) ([]*Employee, error) {
	start, end := utils.MonthRange(period)
	db := config.GetDB()
	var employees []*Employee
	err := db.WithContext(ctx).
		Where("start_date IS NULL OR start_date < ?", end).
		Where("end_date IS NULL OR end_date >= ?", start).
		Where("status = ? OR end_date IS NOT NULL", EmployeeStatusActive).
		Order("id asc").
		Find(&employees).Error
	if err != nil {
		return nil, err
	}
	return employees, nil
}

// GetApprovedPayGrade returns the employee's pay grade only when approved.
// Unapproved or missing grades return RecordNotFound.
func GetApprovedPayGrade(ctx context.Context, payGradeId int) (*PayGrade, error) {
	if payGradeId == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	db := config.GetDB()
	var grade PayGrade
	err := db.WithContext(ctx).
		Where("id = ? AND status = ?", payGradeId, ConfigStatusApproved).
		First(&grade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &grade, nil
}

// EmployedWithinPeriod reports whether the employee's contract window
// intersects the run's calendar month.
func (e *Employee) EmployedWithinPeriod(period time.Time) bool {
	start, end := utils.MonthRange(period)
	if e.StartDate != nil && !e.StartDate.Before(end) {
		return false
	}
	if e.EndDate != nil && e.EndDate.Before(start) {
		return false
	}
	return true
}
