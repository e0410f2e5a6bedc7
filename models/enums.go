package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type PayrollRunStatus string

const (
	PayrollRunStatusDraft                  PayrollRunStatus = "Draft"
	PayrollRunStatusUnderReview            PayrollRunStatus = "UnderReview"
	PayrollRunStatusPendingFinanceApproval PayrollRunStatus = "PendingFinanceApproval"
	PayrollRunStatusApproved               PayrollRunStatus = "Approved"
	PayrollRunStatusLocked                 PayrollRunStatus = "Locked"
	PayrollRunStatusUnlocked               PayrollRunStatus = "Unlocked"
	PayrollRunStatusRejected               PayrollRunStatus = "Rejected"
)

func (s PayrollRunStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *PayrollRunStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*s = PayrollRunStatus(v)
	case []byte:
		*s = PayrollRunStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into PayrollRunStatus", value)
	}
	return nil
}

func ParsePayrollRunStatus(str string) (PayrollRunStatus, error) {
	switch str {
	case "Draft":
		return PayrollRunStatusDraft, nil
	case "UnderReview":
		return PayrollRunStatusUnderReview, nil
	case "PendingFinanceApproval":
		return PayrollRunStatusPendingFinanceApproval, nil
	case "Approved":
		return PayrollRunStatusApproved, nil
	case "Locked":
		return PayrollRunStatusLocked, nil
	case "Unlocked":
		return PayrollRunStatusUnlocked, nil
	case "Rejected":
		return PayrollRunStatusRejected, nil
	}
	return "", errors.New("invalid payroll run status")
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

type BankStatus string

const (
	BankStatusVerified BankStatus = "Verified"
	BankStatusMissing  BankStatus = "Missing"
)

type UserRole string

const (
	UserRoleSpecialist UserRole = "Specialist"
	UserRoleManager    UserRole = "Manager"
	UserRoleFinance    UserRole = "Finance"
	UserRoleAdmin      UserRole = "Admin"
)

type ConfigStatus string

const (
	ConfigStatusDraft    ConfigStatus = "Draft"
	ConfigStatusApproved ConfigStatus = "Approved"
	ConfigStatusRetired  ConfigStatus = "Retired"
)

type AdjustmentType string

const (
	AdjustmentTypeSigningBonus       AdjustmentType = "SigningBonus"
	AdjustmentTypeTerminationBenefit AdjustmentType = "TerminationBenefit"
)

type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "Pending"
	AdjustmentStatusApproved AdjustmentStatus = "Approved"
	AdjustmentStatusRejected AdjustmentStatus = "Rejected"
	AdjustmentStatusPaid     AdjustmentStatus = "Paid"
)

type ExceptionStatus string

const (
	ExceptionStatusActive   ExceptionStatus = "Active"
	ExceptionStatusResolved ExceptionStatus = "Resolved"
)

// Exception codes written to the per-employee ledger.
type ExceptionCode string

const (
	ExceptionCodeMissingBaseSalary  ExceptionCode = "MISSING_BASE_SALARY"
	ExceptionCodeBaseSalaryOverride ExceptionCode = "BASE_SALARY_OVERRIDE"
	ExceptionCodeBelowMinimumWage   ExceptionCode = "BELOW_MINIMUM_WAGE"
	ExceptionCodeNegativeNetPay     ExceptionCode = "NEGATIVE_NET_PAY"
	ExceptionCodeMissingBankAccount ExceptionCode = "MISSING_BANK_ACCOUNT"
	ExceptionCodeSalarySpike        ExceptionCode = "SALARY_SPIKE"
	ExceptionCodeCalcError          ExceptionCode = "CALC_ERROR"
	ExceptionCodeGradeLookupFailed  ExceptionCode = "GRADE_LOOKUP_FAILED"
	ExceptionCodeLeaveLookupFailed  ExceptionCode = "LEAVE_LOOKUP_FAILED"
	ExceptionCodeTimeLookupFailed   ExceptionCode = "TIME_LOOKUP_FAILED"
	ExceptionCodeRefundLookupFailed ExceptionCode = "REFUND_LOOKUP_FAILED"
	ExceptionCodeRefundMarkFailed   ExceptionCode = "REFUND_MARK_FAILED"
)

type TimeExceptionType string

const (
	TimeExceptionMissedPunch TimeExceptionType = "MissedPunch"
	TimeExceptionLate        TimeExceptionType = "Late"
	TimeExceptionEarlyLeave  TimeExceptionType = "EarlyLeave"
	TimeExceptionShortTime   TimeExceptionType = "ShortTime"
)

type AttendanceStatus string

const (
	AttendanceStatusOpen      AttendanceStatus = "Open"
	AttendanceStatusFinalized AttendanceStatus = "Finalized"
)

type LeaveRequestStatus string

const (
	LeaveRequestStatusPending  LeaveRequestStatus = "Pending"
	LeaveRequestStatusApproved LeaveRequestStatus = "Approved"
	LeaveRequestStatusRejected LeaveRequestStatus = "Rejected"
)

type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "Active"
	EmployeeStatusTerminated EmployeeStatus = "Terminated"
)

// StepStatus is the typed outcome of one upstream contribution step inside the
// calculation pipeline. A Degraded step contributed zero and wrote a ledger
// exception; a Failed step aborted the employee (CALC_ERROR).
type StepStatus string

const (
	StepStatusOk       StepStatus = "Ok"
	StepStatusDegraded StepStatus = "Degraded"
	StepStatusFailed   StepStatus = "Failed"
)

type PayrollEventType string

const (
	PayrollEventRunCreated        PayrollEventType = "RunCreated"
	PayrollEventStatusChanged     PayrollEventType = "StatusChanged"
	PayrollEventRunLocked         PayrollEventType = "RunLocked"
	PayrollEventRunUnlocked       PayrollEventType = "RunUnlocked"
	PayrollEventDraftGenerated    PayrollEventType = "DraftGenerated"
	PayrollEventPayslipsGenerated PayrollEventType = "PayslipsGenerated"
)

type OutboxPublishStatus = string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
