package clinic

import (
	"errors"
	"testing"
)

func TestParseRole(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name    string
		raw     string
		want    Role
		wantErr error
	}{
		{name: "patient", raw: "patient", want: RolePatient},
		{name: "caregiver upper", raw: "Caregiver", want: RoleCaregiver},
		{name: "padded", raw: "  patient ", want: RolePatient},
		{name: "unknown", raw: "admin", wantErr: ErrInvalidRole},
		{name: "empty", raw: "", wantErr: ErrInvalidRole},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			role, err := ParseRole(testCase.raw)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				test.Fatalf("parse role: %v", err)
			}
			if role != testCase.want {
				test.Fatalf("expected %s, got %s", testCase.want, role)
			}
		})
	}
}

func TestNewUsernameValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewUsername(""); !errors.Is(err, ErrInvalidUsername) {
		test.Fatalf("expected ErrInvalidUsername for empty input, got %v", err)
	}
	if _, err := NewUsername("two words"); !errors.Is(err, ErrInvalidUsername) {
		test.Fatalf("expected ErrInvalidUsername for whitespace, got %v", err)
	}
	username, err := NewUsername("  carol ")
	if err != nil {
		test.Fatalf("username: %v", err)
	}
	if username.String() != "carol" {
		test.Fatalf("expected trimmed username, got %q", username.String())
	}
}

func TestNewScheduleDateValidation(test *testing.T) {
	test.Parallel()
	date, err := NewScheduleDate("2024-01-05")
	if err != nil {
		test.Fatalf("date: %v", err)
	}
	if date.String() != "2024-01-05" {
		test.Fatalf("expected canonical form, got %q", date.String())
	}
	for _, raw := range []string{"", "01/05/2024", "2024-13-01", "2024-02-30", "tomorrow"} {
		if _, err := NewScheduleDate(raw); !errors.Is(err, ErrInvalidDate) {
			test.Fatalf("expected ErrInvalidDate for %q, got %v", raw, err)
		}
	}
}

func TestNewVaccineNameValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewVaccineName("   "); !errors.Is(err, ErrInvalidVaccineName) {
		test.Fatalf("expected ErrInvalidVaccineName, got %v", err)
	}
	name, err := NewVaccineName(" Moderna ")
	if err != nil {
		test.Fatalf("vaccine name: %v", err)
	}
	if name.String() != "Moderna" {
		test.Fatalf("expected trimmed name, got %q", name.String())
	}
}

func TestNewDoseCountValidation(test *testing.T) {
	test.Parallel()
	for _, raw := range []int64{0, -1} {
		if _, err := NewDoseCount(raw); !errors.Is(err, ErrInvalidDoseCount) {
			test.Fatalf("expected ErrInvalidDoseCount for %d, got %v", raw, err)
		}
	}
	count, err := NewDoseCount(7)
	if err != nil {
		test.Fatalf("dose count: %v", err)
	}
	if count.Int64() != 7 {
		test.Fatalf("expected 7, got %d", count.Int64())
	}
}

func TestNewAppointmentIDValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewAppointmentID(0); !errors.Is(err, ErrInvalidAppointmentID) {
		test.Fatalf("expected ErrInvalidAppointmentID, got %v", err)
	}
	id, err := NewAppointmentID(12)
	if err != nil {
		test.Fatalf("appointment id: %v", err)
	}
	if id.Int64() != 12 {
		test.Fatalf("expected 12, got %d", id.Int64())
	}
}
