package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayrollEventRecord is the transactional outbox row behind the notification
// sink: the record is written inside the caller's DB transaction and published
// asynchronously by the dispatcher after commit. Publishing is best-effort and
// never blocks or rolls back payroll work.
type PayrollEventRecord struct {
	ID              int              `gorm:"primary_key" json:"id"`
	RunId           int              `gorm:"index;not null" json:"run_id"`
	EmployeeId      int              `gorm:"index" json:"employee_id"`
	EventType       PayrollEventType `gorm:"size:50;not null" json:"event_type"`
	OccurredAt      time.Time        `gorm:"index;not null" json:"occurred_at"`
	Payload         []byte           `gorm:"type:json" json:"payload"`
	CorrelationId   string           `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus   string           `gorm:"size:20;default:PENDING;index" json:"publish_status"`
	PublishAttempts int              `gorm:"default:0" json:"publish_attempts"`
	LastPublishError *string         `gorm:"size:500" json:"last_publish_error"`
	NextAttemptAt   *time.Time       `json:"next_attempt_at"`
	LockedAt        *time.Time       `json:"locked_at"`
	LockedBy        *string          `gorm:"size:64" json:"locked_by"`
	PublishedAt     *time.Time       `json:"published_at"`
	PubSubMessageId *string          `gorm:"size:64" json:"pub_sub_message_id"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// PublishPayrollEvent writes the outbox record inside the caller's DB
// transaction. It does NOT publish to Pub/Sub; the outbox dispatcher does
// that after commit.
func PublishPayrollEvent(ctx context.Context, tx *gorm.DB, runId int, employeeId int, eventType PayrollEventType, payload interface{}) error {
	var payloadInByte []byte
	var err error
	if payload != nil {
		payloadInByte, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	record := PayrollEventRecord{
		RunId:         runId,
		EmployeeId:    employeeId,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		Payload:       payloadInByte,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

// ConvertToPayrollEvent maps an outbox row to the published wire shape.
func ConvertToPayrollEvent(record PayrollEventRecord) config.PayrollEvent {
	return config.PayrollEvent{
		ID:            record.ID,
		RunId:         record.RunId,
		EmployeeId:    record.EmployeeId,
		EventType:     string(record.EventType),
		OccurredAt:    record.OccurredAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
