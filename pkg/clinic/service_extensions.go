package clinic

import (
	"context"
	"errors"
)

// PublishAvailability inserts an open slot for the session's caregiver on
// the given date. Duplicate uploads are stored as-is; the claim path treats
// any slot for the date as capacity.
func (service *Service) PublishAvailability(ctx context.Context, session Session, date ScheduleDate) error {
	operationError := service.authorizeRole(session, RoleCaregiver)
	if operationError == nil {
		operationError = service.store.PublishSlot(ctx, session.Username, date, service.nowFn())
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationPublish,
		Role:      session.Role,
		Actor:     session.Username,
		Date:      date,
		Error:     operationError,
	})
	return operationError
}

// AddDoses creates the vaccine on first use, otherwise increments its pool.
func (service *Service) AddDoses(ctx context.Context, session Session, vaccine VaccineName, doses DoseCount) error {
	operationError := service.authorizeRole(session, RoleCaregiver)
	if operationError == nil {
		operationError = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			_, err := transactionStore.GetVaccine(ctx, vaccine)
			if errors.Is(err, ErrNotFound) {
				createErr := transactionStore.CreateVaccine(ctx, vaccine, doses)
				if errors.Is(createErr, ErrAlreadyExists) {
					// Lost the creation race; fall through to the increment.
					return transactionStore.AddDoses(ctx, vaccine, doses)
				}
				return createErr
			}
			if err != nil {
				return err
			}
			return transactionStore.AddDoses(ctx, vaccine, doses)
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationAddDoses,
		Role:      session.Role,
		Actor:     session.Username,
		Vaccine:   vaccine,
		Error:     operationError,
	})
	return operationError
}

// ScheduleForDate returns the open caregivers for a date in ascending
// username order together with every vaccine's remaining doses.
func (service *Service) ScheduleForDate(ctx context.Context, date ScheduleDate) (DaySchedule, error) {
	caregivers, err := service.store.ListSlotCaregivers(ctx, date)
	if err != nil {
		return DaySchedule{}, err
	}
	vaccines, err := service.store.ListVaccines(ctx)
	if err != nil {
		return DaySchedule{}, err
	}
	return DaySchedule{Caregivers: caregivers, Vaccines: vaccines}, nil
}

// Appointments lists the session user's reservations ascending by id.
func (service *Service) Appointments(ctx context.Context, session Session) ([]Appointment, error) {
	switch session.Role {
	case RolePatient:
		return service.store.ListAppointmentsByPatient(ctx, session.Username)
	case RoleCaregiver:
		return service.store.ListAppointmentsByCaregiver(ctx, session.Username)
	default:
		return nil, ErrNotAuthorized
	}
}
