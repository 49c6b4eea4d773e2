// Package auditlog records booking operations to the process log and,
// optionally, to a booking_events table for later review.
package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingEvent is one persisted audit row.
type BookingEvent struct {
	EventID   string         `gorm:"type:uuid;primaryKey"`
	Operation string         `gorm:"not null;index"`
	Actor     string         `gorm:"not null;index"`
	Status    string         `gorm:"not null"`
	Detail    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (BookingEvent) TableName() string { return "booking_events" }

func (event *BookingEvent) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}

// Migrate prepares the booking_events table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&BookingEvent{})
}

type eventDetail struct {
	Role          string `json:"role,omitempty"`
	AppointmentID int64  `json:"appointment_id,omitempty"`
	Vaccine       string `json:"vaccine,omitempty"`
	Date          string `json:"date,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Logger implements clinic.OperationLogger. Every operation goes to zap;
// when a database handle is present the event is also persisted. Audit
// persistence is best effort and never fails the operation it describes.
type Logger struct {
	log *zap.Logger
	db  *gorm.DB
}

// New returns a Logger writing to zap only.
func New(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

// NewPersistent returns a Logger that also appends rows to booking_events.
func NewPersistent(log *zap.Logger, db *gorm.DB) *Logger {
	return &Logger{log: log, db: db}
}

func (logger *Logger) LogOperation(ctx context.Context, entry clinic.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("role", entry.Role.String()),
		zap.String("actor", entry.Actor.String()),
		zap.String("status", entry.Status),
		zap.Int64("at_unix_utc", entry.AtUnixUTC),
	}
	if entry.AppointmentID != nil {
		fields = append(fields, zap.Int64("appointment_id", entry.AppointmentID.Int64()))
	}
	if entry.Vaccine.String() != "" {
		fields = append(fields, zap.String("vaccine", entry.Vaccine.String()))
	}
	if entry.Date.String() != "" {
		fields = append(fields, zap.String("date", entry.Date.String()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		logger.log.Warn("booking operation failed", fields...)
	} else {
		logger.log.Info("booking operation", fields...)
	}

	if logger.db == nil {
		return
	}
	if err := logger.persist(ctx, entry); err != nil {
		logger.log.Warn("audit event not persisted", zap.Error(err))
	}
}

func (logger *Logger) persist(ctx context.Context, entry clinic.OperationLog) error {
	detail := eventDetail{
		Role:    entry.Role.String(),
		Vaccine: entry.Vaccine.String(),
		Date:    entry.Date.String(),
	}
	if entry.AppointmentID != nil {
		detail.AppointmentID = entry.AppointmentID.Int64()
	}
	if entry.Error != nil {
		detail.Error = entry.Error.Error()
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	event := BookingEvent{
		Operation: entry.Operation,
		Actor:     entry.Actor.String(),
		Status:    entry.Status,
		Detail:    datatypes.JSON(payload),
		CreatedAt: time.Unix(entry.AtUnixUTC, 0).UTC(),
	}
	return logger.db.WithContext(ctx).Create(&event).Error
}
