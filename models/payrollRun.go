package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayrollRun struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Period      time.Time `gorm:"index;not null" json:"period" binding:"required"`
	EntityLabel string    `gorm:"size:255;not null" json:"entity_label" binding:"required"`

	Employees   int             `gorm:"default:0" json:"employees"`
	Exceptions  int             `gorm:"default:0" json:"exceptions"`
	TotalNetPay decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_net_pay"`

	Status        PayrollRunStatus `gorm:"type:enum('Draft','UnderReview','PendingFinanceApproval','Approved','Locked','Unlocked','Rejected');default:Draft;index" json:"status"`
	PaymentStatus PaymentStatus    `gorm:"type:enum('Pending','Paid');default:Pending" json:"payment_status"`

	SpecialistId      int `gorm:"index" json:"specialist_id"`
	ManagerId         int `gorm:"index" json:"manager_id"`
	FinanceApproverId int `gorm:"index" json:"finance_approver_id"`

	SubmittedAt       *time.Time `json:"submitted_at"`
	ManagerApprovedAt *time.Time `json:"manager_approved_at"`
	FinanceApprovedAt *time.Time `json:"finance_approved_at"`
	LockedAt          *time.Time `json:"locked_at"`

	RejectionReason string `gorm:"size:500" json:"rejection_reason"`
	UnlockReason    string `gorm:"size:500" json:"unlock_reason"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayrollRun struct {
	Period       time.Time `json:"period" binding:"required"`
	EntityName   string    `json:"entity_name" binding:"required"`
	Currency     string    `json:"currency"`
	SpecialistId int       `json:"specialist_id"`
}

// MinUnlockReasonLength is the trimmed length an unlock justification must
// reach before a Locked run may be reopened.
const MinUnlockReasonLength = 10

/* Transition table */

var runTransitions = map[PayrollRunStatus][]PayrollRunStatus{
	PayrollRunStatusDraft:                  {PayrollRunStatusUnderReview, PayrollRunStatusRejected},
	PayrollRunStatusUnderReview:            {PayrollRunStatusPendingFinanceApproval, PayrollRunStatusRejected},
	PayrollRunStatusPendingFinanceApproval: {PayrollRunStatusApproved, PayrollRunStatusRejected},
	PayrollRunStatusApproved:               {PayrollRunStatusLocked},
	PayrollRunStatusLocked:                 {PayrollRunStatusUnlocked},
	PayrollRunStatusUnlocked:               {PayrollRunStatusLocked},
	PayrollRunStatusRejected:               {},
}

// AllowedTransitions returns the transition targets for a status (empty for
// terminal states).
func AllowedTransitions(from PayrollRunStatus) []PayrollRunStatus {
	return runTransitions[from]
}

func CanTransition(from PayrollRunStatus, to PayrollRunStatus) bool {
	for _, allowed := range runTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError names the attempted pair and the allowed set. It is
// also returned when a compare-and-set on status loses a race: the caller's
// view of "from" was stale either way.
type InvalidTransitionError struct {
	From    PayrollRunStatus
	To      PayrollRunStatus
	Allowed []PayrollRunStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	if len(allowed) == 0 {
		return fmt.Sprintf("invalid transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid transition %s -> %s: allowed targets are %s", e.From, e.To, strings.Join(allowed, ", "))
}

func newInvalidTransitionError(from PayrollRunStatus, to PayrollRunStatus) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Allowed: AllowedTransitions(from)}
}

/* CRUD */

func (input *NewPayrollRun) validate() error {
	if input.EntityName == "" {
		return errors.New("entity name is required")
	}
	if input.Period.IsZero() {
		return errors.New("period is required")
	}
	if input.SpecialistId == 0 {
		return errors.New("specialist id is required")
	}
	return nil
}

func CreatePayrollRun(ctx context.Context, input *NewPayrollRun) (*PayrollRun, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	// Period is always the first of the month.
	year, month, _ := input.Period.Date()
	period := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	var existing int64
	if err := db.WithContext(ctx).Model(&PayrollRun{}).
		Where("period = ? AND entity_label LIKE ?", period, input.EntityName+"|%").
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, errors.New("a payroll run already exists for this entity and period")
	}

	run := PayrollRun{
		Period:        period,
		EntityLabel:   FormatEntityLabel(input.EntityName, input.Currency),
		Status:        PayrollRunStatusDraft,
		PaymentStatus: PaymentStatusPending,
		SpecialistId:  input.SpecialistId,
		TotalNetPay:   decimal.Zero,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		return PublishPayrollEvent(ctx, tx, run.ID, 0, PayrollEventRunCreated, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func GetPayrollRun(ctx context.Context, id int) (*PayrollRun, error) {
	return utils.FetchSingleModel[PayrollRun](ctx, id)
}

func GetPayrollRuns(ctx context.Context, status *PayrollRunStatus, fromPeriod *time.Time, toPeriod *time.Time) ([]*PayrollRun, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if fromPeriod != nil {
		dbCtx = dbCtx.Where("period >= ?", *fromPeriod)
	}
	if toPeriod != nil {
		dbCtx = dbCtx.Where("period <= ?", *toPeriod)
	}
	var runs []*PayrollRun
	err := dbCtx.Order("period desc, id desc").Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// EnsureMutable rejects mutation of calculation data tied to a Locked run.
// Under STRICT_RUN_IMMUTABLE, an Approved run is frozen too: its figures were
// signed off and may only change after lock and a reasoned unlock.
func (r *PayrollRun) EnsureMutable() error {
	if r.Status == PayrollRunStatusApproved && config.StrictRunImmutability() {
		return errors.New("payroll run is approved; its data is frozen until it is locked and unlocked with a reason")
	}
	if r.Status == PayrollRunStatusLocked {
		return errors.New("payroll run is locked; unlock it with a reason before changing its data")
	}
	return nil
}

// Currency returns the run's display currency from its entity label.
func (r *PayrollRun) Currency() string {
	_, currency := ParseEntityLabel(r.EntityLabel)
	return currency
}

/* Transition application */

// ValidateUnlockReason enforces the mandatory unlock justification.
func ValidateUnlockReason(reason string) error {
	if len(strings.TrimSpace(reason)) < MinUnlockReasonLength {
		return fmt.Errorf("unlock reason must be at least %d characters", MinUnlockReasonLength)
	}
	return nil
}

// validateApproverRoles checks the deciding party for a transition target.
// Manager approval moves a run to PendingFinanceApproval; finance approval
// moves it to Approved. The approvers must differ from the specialist and from
// each other.
func (r *PayrollRun) validateApproverRoles(ctx context.Context, to PayrollRunStatus) (map[string]interface{}, error) {
	stamps := map[string]interface{}{}
	now := time.Now().UTC()

	switch to {
	case PayrollRunStatusUnderReview:
		stamps["submitted_at"] = &now
	case PayrollRunStatusPendingFinanceApproval:
		managerId, err := RequireRole(ctx, UserRoleManager)
		if err != nil {
			return nil, err
		}
		if managerId == r.SpecialistId {
			return nil, errors.New("manager approver must differ from the run specialist")
		}
		stamps["manager_id"] = managerId
		stamps["manager_approved_at"] = &now
	case PayrollRunStatusApproved:
		financeId, err := RequireRole(ctx, UserRoleFinance)
		if err != nil {
			return nil, err
		}
		if financeId == r.SpecialistId {
			return nil, errors.New("finance approver must differ from the run specialist")
		}
		if r.ManagerId != 0 && financeId == r.ManagerId {
			return nil, errors.New("finance approver must differ from the manager approver")
		}
		stamps["finance_approver_id"] = financeId
		stamps["finance_approved_at"] = &now
	case PayrollRunStatusLocked:
		stamps["locked_at"] = &now
	}
	return stamps, nil
}

// ApplyTransition validates and applies one state machine step with a
// compare-and-set on the current status. A lost race surfaces as
// InvalidTransitionError, exactly like a table violation.
func (r *PayrollRun) ApplyTransition(ctx context.Context, tx *gorm.DB, to PayrollRunStatus, reason string) error {
	if !CanTransition(r.Status, to) {
		return newInvalidTransitionError(r.Status, to)
	}

	stamps, err := r.validateApproverRoles(ctx, to)
	if err != nil {
		return err
	}

	switch to {
	case PayrollRunStatusRejected:
		if strings.TrimSpace(reason) == "" {
			return errors.New("rejection reason is required")
		}
		stamps["rejection_reason"] = strings.TrimSpace(reason)
	case PayrollRunStatusUnlocked:
		if err := ValidateUnlockReason(reason); err != nil {
			return err
		}
		stamps["unlock_reason"] = strings.TrimSpace(reason)
	}

	stamps["status"] = to
	result := tx.Model(&PayrollRun{}).
		Where("id = ? AND status = ?", r.ID, r.Status).
		Updates(stamps)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Someone else moved the run first; the caller's from-status is stale.
		return newInvalidTransitionError(r.Status, to)
	}

	from := r.Status
	r.Status = to
	if err := PublishPayrollEvent(ctx, tx, r.ID, 0, PayrollEventStatusChanged, map[string]string{
		"from":   string(from),
		"to":     string(to),
		"reason": strings.TrimSpace(reason),
	}); err != nil {
		return err
	}
	return nil
}

// SetRunAggregates is the single-writer fan-in update after draft generation.
func SetRunAggregates(tx *gorm.DB, runId int, employees int, exceptions int, totalNetPay decimal.Decimal) error {
	return tx.Model(&PayrollRun{}).
		Where("id = ?", runId).
		Updates(map[string]interface{}{
			"employees":     employees,
			"exceptions":    exceptions,
			"total_net_pay": totalNetPay,
		}).Error
}

// AdjustRunExceptionCount bumps the run-level active exception counter.
func AdjustRunExceptionCount(tx *gorm.DB, runId int, delta int) error {
	return tx.Model(&PayrollRun{}).
		Where("id = ?", runId).
		Update("exceptions", gorm.Expr("GREATEST(exceptions + ?, 0)", delta)).Error
}

// MarkPaid flips the run's payment status once disbursement has happened.
func MarkPaid(ctx context.Context, runId int) (*PayrollRun, error) {
	db := config.GetDB()
	run, err := GetPayrollRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status != PayrollRunStatusApproved && run.Status != PayrollRunStatusLocked {
		return nil, errors.New("only an approved or locked run can be marked paid")
	}
	if err := db.WithContext(ctx).Model(&PayrollRun{}).
		Where("id = ?", runId).
		Update("payment_status", PaymentStatusPaid).Error; err != nil {
		return nil, err
	}
	run.PaymentStatus = PaymentStatusPaid
	return run, nil
}
