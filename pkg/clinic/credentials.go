package clinic

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength     = 16
	hashIterations = 10_000
	hashLength     = 32
)

// CredentialService persists and verifies salted password credentials.
// Accounts are immutable once registered; there is no password change.
type CredentialService struct {
	store  Store
	logger OperationLogger
}

// NewCredentialService wires a CredentialService.
func NewCredentialService(store Store, options ...CredentialOption) (*CredentialService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	service := &CredentialService{store: store}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CredentialOption configures a CredentialService instance.
type CredentialOption func(*CredentialService)

// WithCredentialLogger wires an operation logger for credential operations.
func WithCredentialLogger(logger OperationLogger) CredentialOption {
	return func(service *CredentialService) {
		service.logger = logger
	}
}

// Register creates a credential for (role, username) with a fresh random
// salt. Duplicate registrations in the same role space fail with
// ErrAlreadyExists; the uniqueness check rides on the store's constraint,
// not a read-then-insert.
func (service *CredentialService) Register(ctx context.Context, role Role, username Username, password string) error {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return WrapError(operationRegister, "credential", "salt", err)
	}
	operationError := service.store.CreateCredential(ctx, Credential{
		Role:     role,
		Username: username,
		Salt:     salt,
		Hash:     deriveHash(password, salt),
	})
	service.logCredentialOperation(ctx, operationRegister, role, username, operationError)
	return operationError
}

// Verify recomputes the hash over the supplied password and stored salt and
// returns the account only on exact match. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (service *CredentialService) Verify(ctx context.Context, role Role, username Username, password string) (Account, error) {
	credential, err := service.store.GetCredential(ctx, role, username)
	if err != nil {
		service.logCredentialOperation(ctx, operationVerify, role, username, ErrInvalidCredentials)
		return Account{}, ErrInvalidCredentials
	}
	computed := deriveHash(password, credential.Salt)
	if subtle.ConstantTimeCompare(computed, credential.Hash) != 1 {
		service.logCredentialOperation(ctx, operationVerify, role, username, ErrInvalidCredentials)
		return Account{}, ErrInvalidCredentials
	}
	service.logCredentialOperation(ctx, operationVerify, role, username, nil)
	return Account{Role: credential.Role, Username: credential.Username}, nil
}

func (service *CredentialService) logCredentialOperation(ctx context.Context, operation string, role Role, username Username, operationError error) {
	if service.logger == nil {
		return
	}
	status := operationStatusOK
	if operationError != nil {
		status = operationStatusError
	}
	service.logger.LogOperation(ctx, OperationLog{
		Operation: operation,
		Role:      role,
		Actor:     username,
		Status:    status,
		Error:     operationError,
	})
}

func deriveHash(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, hashIterations, hashLength, sha256.New)
}
