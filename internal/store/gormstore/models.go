package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account represents the accounts table. Patient and caregiver credentials
// live in the same table but in disjoint (role, username) spaces.
type Account struct {
	AccountID    string    `gorm:"type:uuid;primaryKey"`
	Role         string    `gorm:"not null;index:idx_accounts_role_username,unique,priority:1"`
	Username     string    `gorm:"not null;index:idx_accounts_role_username,unique,priority:2"`
	Salt         []byte    `gorm:"not null"`
	PasswordHash []byte    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// Vaccine mirrors the vaccines table; doses never goes below zero.
type Vaccine struct {
	Name      string    `gorm:"primaryKey"`
	Doses     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Vaccine) TableName() string { return "vaccines" }

// Availability is one open slot. The surrogate slot id lets a claim delete
// exactly one row even when a caregiver uploaded the same date twice.
type Availability struct {
	SlotID            int64     `gorm:"primaryKey;autoIncrement"`
	SlotDate          string    `gorm:"not null;index:idx_availabilities_date_caregiver,priority:1"`
	CaregiverUsername string    `gorm:"not null;index:idx_availabilities_date_caregiver,priority:2"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (Availability) TableName() string { return "availabilities" }

// Appointment mirrors the appointments table; ids are generated by the
// database and never reused.
type Appointment struct {
	AppointmentID     int64     `gorm:"primaryKey;autoIncrement"`
	PatientUsername   string    `gorm:"not null;index"`
	CaregiverUsername string    `gorm:"not null;index"`
	VaccineName       string    `gorm:"not null"`
	SlotDate          string    `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (Appointment) TableName() string { return "appointments" }
