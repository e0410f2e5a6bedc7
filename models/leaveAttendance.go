package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Read models for the leave, time-tracking and refund collaborators. The core
// reads them for the run period; the only write-back is marking a refund as
// paid in a run.

type LeaveType struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsPaid    *bool     `gorm:"default:true" json:"is_paid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type LeaveRequest struct {
	ID           int                `gorm:"primary_key" json:"id"`
	EmployeeId   int                `gorm:"index;not null" json:"employee_id" binding:"required"`
	LeaveTypeId  int                `gorm:"index;not null" json:"leave_type_id" binding:"required"`
	LeaveType    *LeaveType         `json:"leave_type,omitempty"`
	StartDate    time.Time          `gorm:"index;not null" json:"start_date" binding:"required"`
	DurationDays int                `gorm:"default:0" json:"duration_days"`
	Status       LeaveRequestStatus `gorm:"type:enum('Pending','Approved','Rejected');default:Pending;index" json:"status"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type AttendanceRecord struct {
	ID              int              `gorm:"primary_key" json:"id"`
	EmployeeId      int              `gorm:"index;not null" json:"employee_id" binding:"required"`
	WorkDate        time.Time        `gorm:"index;not null" json:"work_date" binding:"required"`
	ExpectedMinutes int              `gorm:"default:480" json:"expected_minutes"`
	ActualMinutes   int              `gorm:"default:0" json:"actual_minutes"`
	Status          AttendanceStatus `gorm:"type:enum('Open','Finalized');default:Open;index" json:"status"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type TimeException struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	EmployeeId         int               `gorm:"index;not null" json:"employee_id" binding:"required"`
	AttendanceRecordId int               `gorm:"index" json:"attendance_record_id"`
	Type               TimeExceptionType `gorm:"type:enum('MissedPunch','Late','EarlyLeave','ShortTime');not null" json:"type" binding:"required"`
	OccurredAt         time.Time         `gorm:"index" json:"occurred_at"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

type RefundRecord struct {
	ID         int             `gorm:"primary_key" json:"id"`
	EmployeeId int             `gorm:"index;not null" json:"employee_id" binding:"required"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Reason     string          `gorm:"size:255" json:"reason"`
	IsPending  *bool           `gorm:"default:true" json:"is_pending"`
	PaidInRun  int             `gorm:"default:0;index" json:"paid_in_run"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetApprovedLeaveRequests returns approved leave requests starting inside the
// run's calendar month, with leave types preloaded for the paid/unpaid flag.
func GetApprovedLeaveRequests(ctx context.Context, employeeId int, period time.Time) ([]*LeaveRequest, error) {
	start, end := utils.MonthRange(period)
	db := config.GetDB()
	var requests []*LeaveRequest
	err := db.WithContext(ctx).
		Preload("LeaveType").
		Where("employee_id = ? AND status = ? AND start_date >= ? AND start_date < ?",
			employeeId, LeaveRequestStatusApproved, start, end).
		Order("id asc").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// GetFinalizedAttendance returns finalized attendance records for the period.
func GetFinalizedAttendance(ctx context.Context, employeeId int, period time.Time) ([]*AttendanceRecord, error) {
	start, end := utils.MonthRange(period)
	db := config.GetDB()
	var records []*AttendanceRecord
	err := db.WithContext(ctx).
		Where("employee_id = ? AND status = ? AND work_date >= ? AND work_date < ?",
			employeeId, AttendanceStatusFinalized, start, end).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetTimeExceptions returns time exceptions in the period. Late, early-leave
// and short-time exceptions count only against a finalized attendance record;
// a missed punch stands on its own since there is usually no attendance row
// to tie it to.
func GetTimeExceptions(ctx context.Context, employeeId int, period time.Time) ([]*TimeException, error) {
	start, end := utils.MonthRange(period)
	db := config.GetDB()
	var exceptions []*TimeException
	err := db.WithContext(ctx).
		Joins("LEFT JOIN attendance_records ON attendance_records.id = time_exceptions.attendance_record_id").
		Where("time_exceptions.employee_id = ?", employeeId).
		Where("time_exceptions.occurred_at >= ? AND time_exceptions.occurred_at < ?", start, end).
		Where("time_exceptions.type = ? OR attendance_records.status = ?", TimeExceptionMissedPunch, AttendanceStatusFinalized).
		Order("time_exceptions.id asc").
		Find(&exceptions).Error
	if err != nil {
		return nil, err
	}
	return exceptions, nil
}

// GetPendingRefunds returns refund records that are pending and not yet marked
// as paid in any run.
func GetPendingRefunds(ctx context.Context, employeeId int) ([]*RefundRecord, error) {
	db := config.GetDB()
	var refunds []*RefundRecord
	err := db.WithContext(ctx).
		Where("employee_id = ? AND is_pending = 1 AND paid_in_run = 0", employeeId).
		Order("id asc").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// MarkRefundsPaidInRun records that the refunds were settled by the given run.
func MarkRefundsPaidInRun(tx *gorm.DB, refundIds []int, runId int) error {
	if len(refundIds) == 0 {
		return nil
	}
	return tx.Model(&RefundRecord{}).
		Where("id IN ?", refundIds).
		Updates(map[string]interface{}{"is_pending": false, "paid_in_run": runId}).Error
}
