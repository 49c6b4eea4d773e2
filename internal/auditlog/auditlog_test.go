package auditlog

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDatabase(test *testing.T) *gorm.DB {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/audit.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(database); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return database
}

func TestPersistentLoggerWritesEvent(test *testing.T) {
	test.Parallel()
	database := newTestDatabase(test)
	auditLogger := NewPersistent(zap.NewNop(), database)
	actor, err := clinic.NewUsername("alice")
	if err != nil {
		test.Fatalf("username: %v", err)
	}
	vaccine, err := clinic.NewVaccineName("Moderna")
	if err != nil {
		test.Fatalf("vaccine: %v", err)
	}
	appointmentID, err := clinic.NewAppointmentID(7)
	if err != nil {
		test.Fatalf("appointment id: %v", err)
	}

	auditLogger.LogOperation(context.Background(), clinic.OperationLog{
		Operation:     "reserve",
		Role:          clinic.RolePatient,
		Actor:         actor,
		AppointmentID: &appointmentID,
		Vaccine:       vaccine,
		Status:        "ok",
		AtUnixUTC:     42,
	})

	var events []BookingEvent
	if err := database.Find(&events).Error; err != nil {
		test.Fatalf("load events: %v", err)
	}
	if len(events) != 1 {
		test.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	if event.Operation != "reserve" || event.Actor != "alice" || event.Status != "ok" {
		test.Fatalf("unexpected event: %+v", event)
	}
	if event.EventID == "" {
		test.Fatalf("expected a generated event id")
	}
	if len(event.Detail) == 0 {
		test.Fatalf("expected detail payload")
	}
}

func TestZapOnlyLoggerSkipsPersistence(test *testing.T) {
	test.Parallel()
	auditLogger := New(zap.NewNop())
	actor, err := clinic.NewUsername("carol")
	if err != nil {
		test.Fatalf("username: %v", err)
	}

	auditLogger.LogOperation(context.Background(), clinic.OperationLog{
		Operation: "publish_availability",
		Role:      clinic.RoleCaregiver,
		Actor:     actor,
		Status:    "ok",
		AtUnixUTC: 1,
	})
}
