package pgstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintAccountRoleUsername = "accounts_role_username_key"
	constraintVaccinePrimary      = "vaccines_pkey"
	pgUniqueViolationCode         = "23505"
	errorOperationStore           = "store"
	errorSubjectCredential        = "credential"
	errorSubjectVaccine           = "vaccine"
	errorSubjectSlot              = "slot"
	errorSubjectAppointment       = "appointment"
	errorSubjectTransaction       = "transaction"
	errorCodeBegin                = "begin"
	errorCodeCommit               = "commit"
	errorCodeCreate               = "create"
	errorCodeDuplicate            = "duplicate"
	errorCodeGet                  = "get"
	errorCodeDelete               = "delete"
	errorCodeList                 = "list"
	errorCodeInvalid              = "invalid"
	errorCodeAddDoses             = "add_doses"
	errorCodeConsume              = "consume"
	errorCodeClaim                = "claim"
	errorCodePublish              = "publish"

	sqlInsertCredential = `
		insert into accounts(account_id, role, username, salt, password_hash, created_at)
		values (gen_random_uuid(), $1, $2, $3, $4, now())
	`

	sqlSelectCredential = `
		select role, username, salt, password_hash
		from accounts
		where role = $1 and username = $2
	`

	sqlInsertVaccine = `
		insert into vaccines(name, doses, created_at, updated_at)
		values ($1, $2, now(), now())
	`

	sqlSelectVaccine = `
		select name, doses from vaccines where name = $1
	`

	sqlAddDoses = `
		update vaccines
		set doses = doses + $2, updated_at = now()
		where name = $1
	`

	sqlConsumeDose = `
		update vaccines
		set doses = doses - 1, updated_at = now()
		where name = $1 and doses >= 1
	`

	sqlListVaccines = `
		select name, doses from vaccines order by name asc
	`

	sqlInsertSlot = `
		insert into availabilities(slot_date, caregiver_username, created_at)
		values ($1, $2, to_timestamp($3))
	`

	sqlClaimSlot = `
		delete from availabilities
		where slot_id = (
			select slot_id from availabilities
			where slot_date = $1
			order by caregiver_username asc, slot_id asc
			limit 1
			for update skip locked
		)
		returning caregiver_username
	`

	sqlListSlotCaregivers = `
		select caregiver_username from availabilities
		where slot_date = $1
		order by caregiver_username asc, slot_id asc
	`

	sqlInsertAppointment = `
		insert into appointments(patient_username, caregiver_username, vaccine_name, slot_date, created_at)
		values ($1, $2, $3, $4, to_timestamp($5))
		returning appointment_id
	`

	sqlSelectAppointment = `
		select appointment_id, patient_username, caregiver_username, vaccine_name, slot_date
		from appointments
		where appointment_id = $1
	`

	sqlDeleteAppointment = `
		delete from appointments where appointment_id = $1
	`

	sqlListAppointmentsByPatient = `
		select appointment_id, patient_username, caregiver_username, vaccine_name, slot_date
		from appointments
		where patient_username = $1
		order by appointment_id asc
	`

	sqlListAppointmentsByCaregiver = `
		select appointment_id, patient_username, caregiver_username, vaccine_name, slot_date
		from appointments
		where caregiver_username = $1
		order by appointment_id asc
	`
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// queries carries the shared method set; Store runs them in autocommit mode
// and TxStore inside an open transaction.
type queries struct {
	db querier
}

// Store implements clinic.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	queries
}

// TxStore implements clinic.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore clinic.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx, queries: queries{db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx on an open transaction joins it rather than nesting.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore clinic.Store) error) error {
	return fn(ctx, store)
}

func (q queries) CreateCredential(ctx context.Context, credential clinic.Credential) error {
	_, err := q.db.Exec(ctx, sqlInsertCredential,
		credential.Role.String(),
		credential.Username.String(),
		credential.Salt,
		credential.Hash,
	)
	if isUniqueViolation(err, constraintAccountRoleUsername) {
		return wrapStoreError(errorSubjectCredential, errorCodeDuplicate, clinic.ErrAlreadyExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeCreate, err)
	}
	return nil
}

func (q queries) GetCredential(ctx context.Context, role clinic.Role, username clinic.Username) (clinic.Credential, error) {
	var (
		roleValue     string
		usernameValue string
		saltValue     []byte
		hashValue     []byte
	)
	err := q.db.QueryRow(ctx, sqlSelectCredential, role.String(), username.String()).Scan(
		&roleValue,
		&usernameValue,
		&saltValue,
		&hashValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, err)
	}
	parsedRole, err := clinic.ParseRole(roleValue)
	if err != nil {
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeInvalid, err)
	}
	parsedUsername, err := clinic.NewUsername(usernameValue)
	if err != nil {
		return clinic.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeInvalid, err)
	}
	return clinic.Credential{
		Role:     parsedRole,
		Username: parsedUsername,
		Salt:     saltValue,
		Hash:     hashValue,
	}, nil
}

func (q queries) GetVaccine(ctx context.Context, name clinic.VaccineName) (clinic.Vaccine, error) {
	var (
		nameValue  string
		dosesValue int64
	)
	err := q.db.QueryRow(ctx, sqlSelectVaccine, name.String()).Scan(&nameValue, &dosesValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeGet, err)
	}
	parsedName, err := clinic.NewVaccineName(nameValue)
	if err != nil {
		return clinic.Vaccine{}, wrapStoreError(errorSubjectVaccine, errorCodeInvalid, err)
	}
	return clinic.Vaccine{Name: parsedName, Doses: dosesValue}, nil
}

func (q queries) CreateVaccine(ctx context.Context, name clinic.VaccineName, doses clinic.DoseCount) error {
	_, err := q.db.Exec(ctx, sqlInsertVaccine, name.String(), doses.Int64())
	if isUniqueViolation(err, constraintVaccinePrimary) {
		return wrapStoreError(errorSubjectVaccine, errorCodeDuplicate, clinic.ErrAlreadyExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeCreate, err)
	}
	return nil
}

func (q queries) AddDoses(ctx context.Context, name clinic.VaccineName, doses clinic.DoseCount) error {
	tag, err := q.db.Exec(ctx, sqlAddDoses, name.String(), doses.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeAddDoses, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectVaccine, errorCodeAddDoses, clinic.ErrNotFound)
	}
	return nil
}

func (q queries) ConsumeDose(ctx context.Context, name clinic.VaccineName) error {
	tag, err := q.db.Exec(ctx, sqlConsumeDose, name.String())
	if err != nil {
		return wrapStoreError(errorSubjectVaccine, errorCodeConsume, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectVaccine, errorCodeConsume, clinic.ErrInsufficientDoses)
	}
	return nil
}

func (q queries) ListVaccines(ctx context.Context) ([]clinic.Vaccine, error) {
	rows, err := q.db.Query(ctx, sqlListVaccines)
	if err != nil {
		return nil, wrapStoreError(errorSubjectVaccine, errorCodeList, err)
	}
	defer rows.Close()
	vaccines := make([]clinic.Vaccine, 0, 8)
	for rows.Next() {
		var (
			nameValue  string
			dosesValue int64
		)
		if err := rows.Scan(&nameValue, &dosesValue); err != nil {
			return nil, wrapStoreError(errorSubjectVaccine, errorCodeInvalid, err)
		}
		parsedName, err := clinic.NewVaccineName(nameValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectVaccine, errorCodeInvalid, err)
		}
		vaccines = append(vaccines, clinic.Vaccine{Name: parsedName, Doses: dosesValue})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectVaccine, errorCodeList, err)
	}
	return vaccines, nil
}

func (q queries) PublishSlot(ctx context.Context, caregiver clinic.Username, date clinic.ScheduleDate, createdUnixUTC int64) error {
	_, err := q.db.Exec(ctx, sqlInsertSlot, date.String(), caregiver.String(), createdUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectSlot, errorCodePublish, err)
	}
	return nil
}

func (q queries) ClaimSlot(ctx context.Context, date clinic.ScheduleDate) (clinic.Username, error) {
	var caregiverValue string
	err := q.db.QueryRow(ctx, sqlClaimSlot, date.String()).Scan(&caregiverValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, clinic.ErrNoCaregiverAvailable)
		}
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeClaim, err)
	}
	caregiver, err := clinic.NewUsername(caregiverValue)
	if err != nil {
		return clinic.Username{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	return caregiver, nil
}

func (q queries) RestoreSlot(ctx context.Context, caregiver clinic.Username, date clinic.ScheduleDate, createdUnixUTC int64) error {
	return q.PublishSlot(ctx, caregiver, date, createdUnixUTC)
}

func (q queries) ListSlotCaregivers(ctx context.Context, date clinic.ScheduleDate) ([]clinic.Username, error) {
	rows, err := q.db.Query(ctx, sqlListSlotCaregivers, date.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	defer rows.Close()
	caregivers := make([]clinic.Username, 0, 8)
	for rows.Next() {
		var caregiverValue string
		if err := rows.Scan(&caregiverValue); err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		caregiver, err := clinic.NewUsername(caregiverValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		caregivers = append(caregivers, caregiver)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	return caregivers, nil
}

func (q queries) CreateAppointment(ctx context.Context, input clinic.AppointmentInput) (clinic.AppointmentID, error) {
	var appointmentIDValue int64
	err := q.db.QueryRow(ctx, sqlInsertAppointment,
		input.Patient.String(),
		input.Caregiver.String(),
		input.Vaccine.String(),
		input.Date.String(),
		input.CreatedUnixUTC,
	).Scan(&appointmentIDValue)
	if err != nil {
		return 0, wrapStoreError(errorSubjectAppointment, errorCodeCreate, err)
	}
	appointmentID, err := clinic.NewAppointmentID(appointmentIDValue)
	if err != nil {
		return 0, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	return appointmentID, nil
}

func (q queries) GetAppointment(ctx context.Context, id clinic.AppointmentID) (clinic.Appointment, error) {
	appointment, err := scanAppointment(q.db.QueryRow(ctx, sqlSelectAppointment, id.Int64()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeGet, clinic.ErrNotFound)
		}
		return clinic.Appointment{}, err
	}
	return appointment, nil
}

func (q queries) DeleteAppointment(ctx context.Context, id clinic.AppointmentID) error {
	tag, err := q.db.Exec(ctx, sqlDeleteAppointment, id.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectAppointment, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAppointment, errorCodeDelete, clinic.ErrNotFound)
	}
	return nil
}

func (q queries) ListAppointmentsByPatient(ctx context.Context, patient clinic.Username) ([]clinic.Appointment, error) {
	return q.listAppointments(ctx, sqlListAppointmentsByPatient, patient.String())
}

func (q queries) ListAppointmentsByCaregiver(ctx context.Context, caregiver clinic.Username) ([]clinic.Appointment, error) {
	return q.listAppointments(ctx, sqlListAppointmentsByCaregiver, caregiver.String())
}

func (q queries) listAppointments(ctx context.Context, sql string, argument string) ([]clinic.Appointment, error) {
	rows, err := q.db.Query(ctx, sql, argument)
	if err != nil {
		return nil, wrapStoreError(errorSubjectAppointment, errorCodeList, err)
	}
	defer rows.Close()
	appointments := make([]clinic.Appointment, 0, 8)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectAppointment, errorCodeList, err)
	}
	return appointments, nil
}

func scanAppointment(row pgx.Row) (clinic.Appointment, error) {
	var (
		appointmentIDValue int64
		patientValue       string
		caregiverValue     string
		vaccineValue       string
		dateValue          string
	)
	if err := row.Scan(
		&appointmentIDValue,
		&patientValue,
		&caregiverValue,
		&vaccineValue,
		&dateValue,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clinic.Appointment{}, err
		}
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeGet, err)
	}
	appointmentID, err := clinic.NewAppointmentID(appointmentIDValue)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	patient, err := clinic.NewUsername(patientValue)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	caregiver, err := clinic.NewUsername(caregiverValue)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	vaccine, err := clinic.NewVaccineName(vaccineValue)
	if err != nil {
		return clinic.Appointment{}, wrapStoreError(errorSubjectAppointment, errorCodeInvalid, err)
	}
	date, err := clinic.NewScheduleDate(dateValue)
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

func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	return false
}
