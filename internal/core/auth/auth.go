// Package auth implements account authentication and password hashing for
// Pocket Relay's email/password login path.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"

	"github.com/dcrodman/pocketrelay/internal/core/data"
)

var (
	ErrUnknown            = errors.New("an unexpected error occurred")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBanned      = errors.New("this account has been banned")
)

// Argon2id tuning parameters. These favor a ~few-millisecond hash time
// suitable for a login server handling many concurrent clients.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// db is assigned by Init, which the owning server component calls once the
// persistent store is available.
var db *gorm.DB

// Init wires the package to the shared *gorm.DB connection used by
// internal/core/data.
func Init(database *gorm.DB) {
	db = database
}

// Swappable for testing.
var (
	createAccount = func(account *data.Account) error {
		return data.CreateAccount(db, account)
	}
	findAccount = func(email string) (*data.Account, error) {
		return data.FindAccountByEmail(db, email)
	}
	softDeleteAccount = func(email string) error {
		account, err := findAccount(email)
		if err != nil {
			return err
		}
		if account == nil {
			return nil
		}
		return data.DeleteAccount(db, account)
	}
	permanentlyDeleteAccount = func(email string) error {
		account, err := findAccount(email)
		if err != nil {
			return err
		}
		if account == nil {
			return nil
		}
		return data.PermanentlyDeleteAccount(db, account)
	}
)

// HashPassword produces an Argon2id hash of password, encoded together with
// its salt and tuning parameters in the standard PHC-like string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, encodedSalt, encodedHash), nil
}

// verifyPassword checks password against a hash produced by HashPassword.
func verifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New("unrecognized password hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("parsing hash version: %w", err)
	}

	var memory uint32
	var time_ uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time_, &threads); err != nil {
		return false, fmt.Errorf("parsing hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, time_, memory, threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// CreateAccount hashes password and persists a new Account record with the
// given email as its login identifier.
func CreateAccount(username, password, email string) (*data.Account, error) {
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &data.Account{
		Username: username,
		Password: hashed,
		Email:    email,
	}

	if err := createAccount(account); err != nil {
		return nil, err
	}

	return account, nil
}

// VerifyAccount looks up the account registered under email and checks
// password against its stored hash, returning the account on success.
func VerifyAccount(email, password string) (*data.Account, error) {
	account, err := findAccount(email)
	if err != nil {
		return nil, ErrUnknown
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, account.Password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if account.Banned {
		return nil, ErrAccountBanned
	}

	return account, nil
}

// ResolveOriginAccount finds the local account shadowing an Origin SSO
// identity by email, creating one with an unusable random password if this
// is the player's first Origin login.
func ResolveOriginAccount(email string) (*data.Account, error) {
	account, err := findAccount(email)
	if err != nil {
		return nil, ErrUnknown
	}
	if account != nil {
		if account.Banned {
			return nil, ErrAccountBanned
		}
		return account, nil
	}

	placeholder := make([]byte, 32)
	if _, err := rand.Read(placeholder); err != nil {
		return nil, ErrUnknown
	}
	return CreateAccount(email, base64.RawStdEncoding.EncodeToString(placeholder), email)
}

// DeleteAccount soft-deletes the account registered under email.
func DeleteAccount(email string) error {
	return softDeleteAccount(email)
}

// PermanentlyDeleteAccount permanently removes the account registered under email.
func PermanentlyDeleteAccount(email string) error {
	return permanentlyDeleteAccount(email)
}
