package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier is the bcrypt-backed PasswordAuthenticator. The cost
// is tunable so deployments can trade login latency for brute-force
// resistance.
type CredentialVerifier struct {
	cost int
}

// NewCredentialVerifier returns a verifier with the given bcrypt cost.
// Costs outside bcrypt's supported range fall back to the package default.
func NewCredentialVerifier(cost int) *CredentialVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &CredentialVerifier{cost: cost}
}

// HashPassword will generate a password hash
func (v *CredentialVerifier) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password. Mismatches return an error, never panic.
func (v *CredentialVerifier) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

var _ PasswordAuthenticator = (*CredentialVerifier)(nil)

// HashPassword will generate a password hash with the default cost.
func HashPassword(password string) (string, error) {
	return NewCredentialVerifier(passwordHashCost()).HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password.
func ComparePasswordAndHash(password, hash string) error {
	return (&CredentialVerifier{}).ComparePasswordAndHash(password, hash)
}
