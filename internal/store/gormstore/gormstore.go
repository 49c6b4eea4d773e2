package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectTransaction = "transaction"
	errorSubjectCredential  = "credential"
	errorSubjectVaccine     = "vaccine"
	errorSubjectSlot        = "slot"
	errorSubjectAppointment = "appointment"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeDelete         = "delete"
	errorCodeList           = "list"
	errorCodeInvalid        = "invalid"
	errorCodeAddDoses       = "add_doses"
	errorCodeConsume        = "consume"
	errorCodeClaim          = "claim"
	errorCodePublish        = "publish"
	errorCodeTransact       = "transact"
)

// Store implements clinic.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate prepares the four booking tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Account{}, &Vaccine{}, &Availability{}, &Appointment{})
}

// WithTx executes fn within a transaction. Begin and commit failures are
// reported as store errors; fn's own error passes through untouched.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore clinic.Store) error) error {
	var fnErr error
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		fnErr = fn(ctx, &Store{db: transaction})
		return fnErr
	})
	if err != nil && !errors.Is(err, fnErr) {
		return wrapStoreError(errorSubjectTransaction, errorCodeTransact, err)
	}
	return err
}

func (store *Store) CreateCredential(ctx context.Context, credential clinic.Credential) error {
	record := Account{
		Role:         credential.Role.String(),
		Username:     credential.Username.String(),
		Salt:         credential.Salt,
		PasswordHash: credential.Hash,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectCredential, errorCodeDuplicate, clinic.ErrAlreadyExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetCredential(ctx context.Context, role clinic.Role, username clinic.Username) (clinic.Credential, error) {
	var record Account
	err := store.db.WithContext(ctx).
		Where("role = ? AND username = ?", role.String(), username.String()).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, err)
	}
	return mapCredential(record)
}

func (store *Store) GetVaccine(ctx context.Context, name clinic.VaccineName) (clinic.Vaccine, error) {
	var record Vaccine
	err := store.db.WithContext(ctx).Where("name = ?", name.String()).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeGet, err)
	}
	return mapVaccine(record)
}

func (store *Store) CreateVaccine(ctx context.Context, name clinic.VaccineName, doses clinic.DoseCount) error {
	record := Vaccine{Name: name.String(), Doses: doses.Int64()}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectVaccine, errorCodeDuplicate, clinic.ErrAlreadyExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) AddDoses(ctx context.Context, name clinic.VaccineName, doses clinic.DoseCount) error {
	result := store.db.WithContext(ctx).
		Model(&Vaccine{}).
		Where("name = ?", name.String()).
		UpdateColumn("doses", gorm.Expr("doses + ?", doses.Int64()))
	if result.Error != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeAddDoses, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectVaccine, errorCodeAddDoses, clinic.ErrNotFound)
	}
	return nil
}

// ConsumeDose is a single conditional update; a missing vaccine and an empty
// pool are both reported as insufficient doses.
func (store *Store) ConsumeDose(ctx context.Context, name clinic.VaccineName) error {
	result := store.db.WithContext(ctx).
		Model(&Vaccine{}).
		Where("name = ? AND doses >= 1", name.String()).
		UpdateColumn("doses", gorm.Expr("doses - 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeConsume, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectVaccine, errorCodeConsume, clinic.ErrInsufficientDoses)
	}
	return nil
}

func (store *Store) ListVaccines(ctx context.Context) ([]clinic.Vaccine, error) {
	var records []Vaccine
	err := store.db.WithContext(ctx).Order("name asc").Find(&records).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectVaccine, errorCodeList, err)
	}
	vaccines := make([]clinic.Vaccine, 0, len(records))
	for _, record := range records {
		vaccine, err := mapVaccine(record)
		if err != nil {
			return nil, err
		}
		vaccines = append(vaccines, vaccine)
	}
	return vaccines, nil
}

func (store *Store) PublishSlot(ctx context.Context, caregiver clinic.Username, date clinic.ScheduleDate, createdUnixUTC int64) error {
	record := Availability{
		SlotDate:          date.String(),
		CaregiverUsername: caregiver.String(),
		CreatedAt:         unixTimestamp(createdUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return wrapStoreError(errorSubjectSlot, errorCodePublish, err)
	}
	return nil
}

// ClaimSlot selects the lexicographically first open slot for the date and
// deletes that single row. On postgres the selection takes a row lock; on
// sqlite the keyed delete with a zero-row check catches a lost race.
func (store *Store) ClaimSlot(ctx context.Context, date clinic.ScheduleDate) (clinic.Username, error) {
	var record Availability
	query := store.db.WithContext(ctx).
		Where("slot_date = ?", date.String()).
		Order("caregiver_username asc, slot_id asc")
	if store.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, clinic.ErrNoCaregiverAvailable)
		}
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, err)
	}
	result := store.db.WithContext(ctx).Delete(&Availability{}, "slot_id = ?", record.SlotID)
	if result.Error != nil {
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, result.Error)
	}
	if result.RowsAffected == 0 {
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, clinic.ErrNoCaregiverAvailable)
	}
	caregiver, err := clinic.NewUsername(record.CaregiverUsername)
	if err != nil {
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	return caregiver, nil
}

func (store *Store) RestoreSlot(ctx context.Context, caregiver clinic.Username, date clinic.ScheduleDate, createdUnixUTC int64) error {
	return store.PublishSlot(ctx, caregiver, date, createdUnixUTC)
}

func (store *Store) ListSlotCaregivers(ctx context.Context, date clinic.ScheduleDate) ([]clinic.Username, error) {
	var records []Availability
	err := store.db.WithContext(ctx).
		Where("slot_date = ?", date.String()).
		Order("caregiver_username asc, slot_id asc").
		Find(&records).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	caregivers := make([]clinic.Username, 0, len(records))
	for _, record := range records {
		caregiver, err := clinic.NewUsername(record.CaregiverUsername)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		caregivers = append(caregivers, caregiver)
	}
	return caregivers, nil
}

func (store *Store) CreateAppointment(ctx context.Context, input clinic.AppointmentInput) (clinic.AppointmentID, error) {
	record := Appointment{
		PatientUsername:   input.Patient.String(),
		CaregiverUsername: input.Caregiver.String(),
		VaccineName:       input.Vaccine.String(),
		SlotDate:          input.Date.String(),
		CreatedAt:         unixTimestamp(input.CreatedUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return 0, wrapStoreError(errorSubjectAppointment, errorCodeCreate, err)
	}
	appointmentID, err := clinic.NewAppointmentID(record.AppointmentID)
	if err != nil {
		return 0, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	return appointmentID, nil
}

func (store *Store) GetAppointment(ctx context.Context, id clinic.AppointmentID) (clinic.Appointment, error) {
	var record Appointment
	err := store.db.WithContext(ctx).Where("appointment_id = ?", id.Int64()).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeGet, err)
	}
	return mapAppointment(record)
}

func (store *Store) DeleteAppointment(ctx context.Context, id clinic.AppointmentID) error {
	result := store.db.WithContext(ctx).Delete(&Appointment{}, "appointment_id = ?", id.Int64())
	if result.Error != nil {
		return wrapStoreError(errorSubjectAppointment, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAppointment, errorCodeDelete, clinic.ErrNotFound)
	}
	return nil
}

func (store *Store) ListAppointmentsByPatient(ctx context.Context, patient clinic.Username) ([]clinic.Appointment, error) {
	return store.listAppointments(ctx, "patient_username = ?", patient.String())
}

func (store *Store) ListAppointmentsByCaregiver(ctx context.Context, caregiver clinic.Username) ([]clinic.Appointment, error) {
	return store.listAppointments(ctx, "caregiver_username = ?", caregiver.String())
}

func (store *Store) listAppointments(ctx context.Context, condition string, argument string) ([]clinic.Appointment, error) {
	var records []Appointment
	err := store.db.WithContext(ctx).
		Where(condition, argument).
		Order("appointment_id asc").
		Find(&records).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAppointment, errorCodeList, err)
	}
	appointments := make([]clinic.Appointment, 0, len(records))
	for _, record := range records {
		appointment, err := mapAppointment(record)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	return appointments, nil
}

func mapCredential(record Account) (clinic.Credential, error) {
	role, err := clinic.ParseRole(record.Role)
	if err != nil {
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeInvalid, err)
	}
	username, err := clinic.NewUsername(record.Username)
	if err != nil {
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeInvalid, err)
	}
	return clinic.Credential{
		Role:     role,
		Username: username,
		Salt:     record.Salt,
		Hash:     record.PasswordHash,
	}, nil
}

func mapVaccine(record Vaccine) (clinic.Vaccine, error) {
	name, err := clinic.NewVaccineName(record.Name)
	if err != nil {
		return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeInvalid, err)
	}
	return clinic.Vaccine{Name: name, Doses: record.Doses}, nil
}

func mapAppointment(record Appointment) (clinic.Appointment, error) {
	appointmentID, err := clinic.NewAppointmentID(record.AppointmentID)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	patient, err := clinic.NewUsername(record.PatientUsername)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	caregiver, err := clinic.NewUsername(record.CaregiverUsername)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	vaccine, err := clinic.NewVaccineName(record.VaccineName)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	date, err := clinic.NewScheduleDate(record.SlotDate)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	return clinic.Appointment{
		ID:        appointmentID,
		Patient:   patient,
		Caregiver: caregiver,
		Vaccine:   vaccine,
		Date:      date,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return clinic.WrapError(errorOperationStore, subject, code, clinic.MarkStoreUnavailable(err))
}

func unixTimestamp(unixUTC int64) time.Time {
	if unixUTC <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
