package clinic

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const scheduleDateLayout = "2006-01-02"

// Role selects one of the two disjoint account spaces.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RolePatient:
		return RolePatient, nil
	case RoleCaregiver:
		return RoleCaregiver, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// Username identifies an account within one role space.
type Username struct {
	value string
}

// NewUsername validates and normalizes a username.
func NewUsername(raw string) (Username, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Username{}, fmt.Errorf("%w: empty value", ErrInvalidUsername)
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return Username{}, fmt.Errorf("%w: contains whitespace", ErrInvalidUsername)
	}
	return Username{value: trimmed}, nil
}

// String returns the normalized username.
func (username Username) String() string {
	return username.value
}

// VaccineName identifies one vaccine's dose pool.
type VaccineName struct {
	value string
}

// NewVaccineName validates and normalizes a vaccine name.
func NewVaccineName(raw string) (VaccineName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VaccineName{}, fmt.Errorf("%w: empty value", ErrInvalidVaccineName)
	}
	return VaccineName{value: trimmed}, nil
}

// String returns the normalized vaccine name.
func (name VaccineName) String() string {
	return name.value
}

// ScheduleDate is an opaque calendar key in YYYY-MM-DD form (no timezone).
type ScheduleDate struct {
	value string
}

// NewScheduleDate validates a calendar date string.
func NewScheduleDate(raw string) (ScheduleDate, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse(scheduleDateLayout, trimmed)
	if err != nil {
		return ScheduleDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return ScheduleDate{value: parsed.Format(scheduleDateLayout)}, nil
}

// String returns the canonical YYYY-MM-DD form.
func (date ScheduleDate) String() string {
	return date.value
}

// AppointmentID is the generated identifier of a reservation.
type AppointmentID int64

// NewAppointmentID validates a raw appointment id.
func NewAppointmentID(raw int64) (AppointmentID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAppointmentID)
	}
	return AppointmentID(raw), nil
}

// Int64 returns the numeric id.
func (id AppointmentID) Int64() int64 {
	return int64(id)
}

// DoseCount is a strictly positive number of doses to add to a pool.
type DoseCount int64

// NewDoseCount validates a dose delta.
func NewDoseCount(raw int64) (DoseCount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidDoseCount)
	}
	return DoseCount(raw), nil
}

// Int64 returns the numeric count.
func (count DoseCount) Int64() int64 {
	return int64(count)
}

// Session carries the authenticated identity supplied by the caller for each
// booking operation. The core holds no login state of its own.
type Session struct {
	Role     Role
	Username Username
}

// NewSession builds a session value from an authenticated identity.
func NewSession(role Role, username Username) Session {
	return Session{Role: role, Username: username}
}

// Credential is one stored (role, username, salt, hash) row.
type Credential struct {
	Role     Role
	Username Username
	Salt     []byte
	Hash     []byte
}

// Account is the authenticated view returned by a successful verification.
type Account struct {
	Role     Role
	Username Username
}

// Vaccine is one named dose pool. Doses never goes negative.
type Vaccine struct {
	Name  VaccineName
	Doses int64
}

// Appointment is one booked reservation row.
type Appointment struct {
	ID        AppointmentID
	Patient   Username
	Caregiver Username
	Vaccine   VaccineName
	Date      ScheduleDate
}

// AppointmentInput is the data inserted by a booking transaction.
type AppointmentInput struct {
	Patient        Username
	Caregiver      Username
	Vaccine        VaccineName
	Date           ScheduleDate
	CreatedUnixUTC int64
}

// DaySchedule is the search view for one date: open caregivers plus every
// vaccine's remaining doses.
type DaySchedule struct {
	Caregivers []Username
	Vaccines   []Vaccine
}

// Store is the persistence contract used by Service and CredentialService.
// Implementations guarantee that ConsumeDose is a single conditional update
// and that ClaimSlot removes exactly one row.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	CreateCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, role Role, username Username) (Credential, error)

	GetVaccine(ctx context.Context, name VaccineName) (Vaccine, error)
	CreateVaccine(ctx context.Context, name VaccineName, doses DoseCount) error
	AddDoses(ctx context.Context, name VaccineName, doses DoseCount) error
	ConsumeDose(ctx context.Context, name VaccineName) error
	ListVaccines(ctx context.Context) ([]Vaccine, error)

	PublishSlot(ctx context.Context, caregiver Username, date ScheduleDate, createdUnixUTC int64) error
	ClaimSlot(ctx context.Context, date ScheduleDate) (Username, error)
	RestoreSlot(ctx context.Context, caregiver Username, date ScheduleDate, createdUnixUTC int64) error
	ListSlotCaregivers(ctx context.Context, date ScheduleDate) ([]Username, error)

	CreateAppointment(ctx context.Context, input AppointmentInput) (AppointmentID, error)
	GetAppointment(ctx context.Context, id AppointmentID) (Appointment, error)
	DeleteAppointment(ctx context.Context, id AppointmentID) error
	ListAppointmentsByPatient(ctx context.Context, patient Username) ([]Appointment, error)
	ListAppointmentsByCaregiver(ctx context.Context, caregiver Username) ([]Appointment, error)
}
