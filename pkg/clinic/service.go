package clinic

import (
	"context"
	"fmt"
)

// Service contains the booking logic over a Store. Every multi-entity
// transition runs as one store transaction; the service keeps no shared
// mutable state across requests.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Reserve books one appointment for the session's patient: it claims the
// lexicographically first open slot on the date, consumes one dose of the
// vaccine, and inserts the reservation, all inside a single transaction.
// If the dose check fails the transaction abort returns the claimed slot.
func (service *Service) Reserve(ctx context.Context, session Session, date ScheduleDate, vaccine VaccineName) (Appointment, error) {
	var booked Appointment
	operationError := service.authorizeRole(session, RolePatient)
	if operationError == nil {
		operationError = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			caregiver, err := transactionStore.ClaimSlot(ctx, date)
			if err != nil {
				return err
			}
			if err := transactionStore.ConsumeDose(ctx, vaccine); err != nil {
				return err
			}
			appointmentID, err := transactionStore.CreateAppointment(ctx, AppointmentInput{
				Patient:        session.Username,
				Caregiver:      caregiver,
				Vaccine:        vaccine,
				Date:           date,
				CreatedUnixUTC: service.nowFn(),
			})
			if err != nil {
				return err
			}
			booked = Appointment{
				ID:        appointmentID,
				Patient:   session.Username,
				Caregiver: caregiver,
				Vaccine:   vaccine,
				Date:      date,
			}
			return nil
		})
	}
	logEntry := OperationLog{
		Operation: operationReserve,
		Role:      session.Role,
		Actor:     session.Username,
		Vaccine:   vaccine,
		Date:      date,
		Error:     operationError,
	}
	if operationError == nil {
		appointmentRef := booked.ID
		logEntry.AppointmentID = &appointmentRef
	}
	service.logOperation(ctx, logEntry)
	if operationError != nil {
		return Appointment{}, operationError
	}
	return booked, nil
}

// Cancel removes a reservation and restores the caregiver's slot for that
// date. Consumed doses are not refunded: cancellation frees caregiver time,
// not vaccine stock. The requester must be the patient or the caregiver on
// the reservation.
func (service *Service) Cancel(ctx context.Context, session Session, appointmentID AppointmentID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		appointment, err := transactionStore.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !sessionOwnsAppointment(session, appointment) {
			return ErrNotAuthorized
		}
		if err := transactionStore.DeleteAppointment(ctx, appointmentID); err != nil {
			return err
		}
		return transactionStore.RestoreSlot(ctx, appointment.Caregiver, appointment.Date, service.nowFn())
	})
	appointmentRef := appointmentID
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		Role:          session.Role,
		Actor:         session.Username,
		AppointmentID: &appointmentRef,
		Error:         operationError,
	})
	return operationError
}

func sessionOwnsAppointment(session Session, appointment Appointment) bool {
	switch session.Role {
	case RolePatient:
		return session.Username == appointment.Patient
	case RoleCaregiver:
		return session.Username == appointment.Caregiver
	default:
		return false
	}
}

func (service *Service) authorizeRole(session Session, required Role) error {
	if session.Role != required {
		return fmt.Errorf("%w: requires %s role", ErrNotAuthorized, required)
	}
	return nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	if entry.AtUnixUTC == 0 {
		entry.AtUnixUTC = service.nowFn()
	}
	service.logger.LogOperation(ctx, entry)
}
