package clinic

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestRegisterStoresSaltedHash(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "alice")

	if err := service.Register(context.Background(), RolePatient, username, "hunter2"); err != nil {
		test.Fatalf("register: %v", err)
	}
	credential, err := store.GetCredential(context.Background(), RolePatient, username)
	if err != nil {
		test.Fatalf("get credential: %v", err)
	}
	if len(credential.Salt) != saltLength {
		test.Fatalf("expected %d-byte salt, got %d", saltLength, len(credential.Salt))
	}
	if len(credential.Hash) != hashLength {
		test.Fatalf("expected %d-byte hash, got %d", hashLength, len(credential.Hash))
	}
	if bytes.Equal(credential.Hash, []byte("hunter2")) {
		test.Fatalf("password must not be stored in the clear")
	}
}

func TestRegisterRejectsDuplicateWithinRole(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "alice")

	if err := service.Register(context.Background(), RolePatient, username, "first"); err != nil {
		test.Fatalf("register: %v", err)
	}
	err := service.Register(context.Background(), RolePatient, username, "second")
	if !errors.Is(err, ErrAlreadyExists) {
		test.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterAllowsSameUsernameAcrossRoles(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "jordan")

	if err := service.Register(context.Background(), RolePatient, username, "pw-a"); err != nil {
		test.Fatalf("register patient: %v", err)
	}
	if err := service.Register(context.Background(), RoleCaregiver, username, "pw-b"); err != nil {
		test.Fatalf("register caregiver with same username: %v", err)
	}
}

func TestVerifyReturnsAccountOnMatch(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "alice")

	if err := service.Register(context.Background(), RoleCaregiver, username, "hunter2"); err != nil {
		test.Fatalf("register: %v", err)
	}
	account, err := service.Verify(context.Background(), RoleCaregiver, username, "hunter2")
	if err != nil {
		test.Fatalf("verify: %v", err)
	}
	if account.Role != RoleCaregiver || account.Username != username {
		test.Fatalf("unexpected account: %+v", account)
	}
}

func TestVerifyDoesNotRevealWhetherUsernameExists(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "alice")

	if err := service.Register(context.Background(), RolePatient, username, "correct"); err != nil {
		test.Fatalf("register: %v", err)
	}

	_, wrongPassword := service.Verify(context.Background(), RolePatient, username, "incorrect")
	_, unknownUser := service.Verify(context.Background(), RolePatient, mustUsername(test, "nobody"), "incorrect")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownUser, ErrInvalidCredentials) {
		test.Fatalf("expected ErrInvalidCredentials for both cases, got %v and %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		test.Fatalf("error text must not distinguish unknown user from wrong password")
	}
}

func TestVerifyChecksRoleSpace(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewCredentialService(test, store)
	username := mustUsername(test, "alice")

	if err := service.Register(context.Background(), RolePatient, username, "hunter2"); err != nil {
		test.Fatalf("register: %v", err)
	}
	_, err := service.Verify(context.Background(), RoleCaregiver, username, "hunter2")
	if !errors.Is(err, ErrInvalidCredentials) {
		test.Fatalf("expected ErrInvalidCredentials across role spaces, got %v", err)
	}
}

func TestNewCredentialServiceRequiresStore(test *testing.T) {
	test.Parallel()
	_, err := NewCredentialService(nil)
	if !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
}

func mustNewCredentialService(test *testing.T, store Store) *CredentialService {
	test.Helper()
	service, err := NewCredentialService(store)
	if err != nil {
		test.Fatalf("new credential service: %v", err)
	}
	return service
}
