package auth

import (
	"fmt"
	"testing"

	"github.com/dcrodman/pocketrelay/internal/core/data"
)

func TestCreateAccount(t *testing.T) {
	type args struct {
		username string
		password string
		email    string
	}
	tests := map[string]struct {
		dbCreateFn func(account *data.Account) error
		args       args
		wantedErr  error
	}{
		"database_error": {
			dbCreateFn: func(account *data.Account) error { return fmt.Errorf("database error") },
			args:       args{username: "test", password: "test", email: "test@example.com"},
			wantedErr:  fmt.Errorf("database error"),
		},
		"happy_path": {
			dbCreateFn: func(account *data.Account) error { return nil },
			args:       args{username: "test", password: "test", email: "a@b.c"},
			wantedErr:  nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalCreateAccount := createAccount
			defer func() {
				createAccount = originalCreateAccount
			}()
			createAccount = tt.dbCreateFn

			account, err := CreateAccount(tt.args.username, tt.args.password, tt.args.email)
			if err != nil && err.Error() != tt.wantedErr.Error() {
				t.Fatalf("expected error to = %s, got = %s", tt.wantedErr, err)
			}

			if err == nil {
				if account.Username != tt.args.username {
					t.Errorf("expected account username = %s, got = %s", tt.args.username, account.Username)
				}
				if account.Email != tt.args.email {
					t.Errorf("expected account email = %s, got = %s", tt.args.email, account.Email)
				}
				ok, err := verifyPassword(tt.args.password, account.Password)
				if err != nil || !ok {
					t.Errorf("expected stored password hash to verify against %q", tt.args.password)
				}
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	password := "password"

	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %s", err)
	}
	if hashed == password {
		t.Fatalf("expected hashed password not to equal password")
	}

	// Argon2id salts every hash, so repeated calls must never collide even
	// though they both verify against the same plaintext.
	hashed2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %s", err)
	}
	if hashed == hashed2 {
		t.Fatalf("expected two hashes of the same password to differ (missing per-call salt)")
	}

	for _, h := range []string{hashed, hashed2} {
		ok, err := verifyPassword(password, h)
		if err != nil {
			t.Fatalf("unexpected error verifying password: %s", err)
		}
		if !ok {
			t.Fatalf("expected %q to verify against its own hash", password)
		}
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	hashed, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("unexpected error hashing password: %s", err)
	}

	ok, err := verifyPassword("wrong-password", hashed)
	if err != nil {
		t.Fatalf("unexpected error verifying password: %s", err)
	}
	if ok {
		t.Fatalf("expected wrong password not to verify")
	}
}

func TestVerifyAccount(t *testing.T) {
	type context struct {
		account *data.Account
		err     error
	}
	type args struct {
		email    string
		password string
	}
	type expected struct {
		account *data.Account
		err     error
	}

	testPasswordHash, err := HashPassword("test")
	if err != nil {
		t.Fatalf("unexpected error hashing password: %s", err)
	}
	wrongPasswordHash, err := HashPassword("not-test")
	if err != nil {
		t.Fatalf("unexpected error hashing password: %s", err)
	}

	happyPathAccount := &data.Account{Username: "test", Email: "test@example.com", Password: testPasswordHash}

	tests := map[string]struct {
		context context
		args    args
		result  expected
	}{
		"database_error": {
			context{account: nil, err: fmt.Errorf("something exploded")},
			args{email: "test@example.com", password: "test"},
			expected{account: nil, err: ErrUnknown},
		},
		"no_account": {
			context{account: nil, err: nil},
			args{email: "test@example.com", password: "test"},
			expected{account: nil, err: ErrInvalidCredentials},
		},
		"invalid_password": {
			context{account: &data.Account{Username: "test", Password: wrongPasswordHash}, err: nil},
			args{email: "test@example.com", password: "test"},
			expected{account: nil, err: ErrInvalidCredentials},
		},
		"banned": {
			context{account: &data.Account{Username: "test", Password: testPasswordHash, Banned: true}, err: nil},
			args{email: "test@example.com", password: "test"},
			expected{account: nil, err: ErrAccountBanned},
		},
		"happy": {
			context{account: happyPathAccount, err: nil},
			args{email: "test@example.com", password: "test"},
			expected{account: happyPathAccount, err: nil},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFindAccount := findAccount

			findAccount = func(email string) (*data.Account, error) {
				return tt.context.account, tt.context.err
			}

			_, err := VerifyAccount(tt.args.email, tt.args.password)

			if err != tt.result.err {
				t.Errorf("expected wantedErr = %s, got = %s", tt.result.err, err)
			}

			findAccount = originalFindAccount
		})
	}
}

func TestSoftDeleteAccount(t *testing.T) {
	type args struct {
		email string
	}
	tests := map[string]struct {
		dbDeleteFunc func(email string) error
		args         args
		wantedErr    error
	}{
		"database_error": {
			dbDeleteFunc: func(email string) error { return fmt.Errorf("database error") },
			args:         args{email: "test@example.com"},
			wantedErr:    fmt.Errorf("database error"),
		},
		"happy_path": {
			dbDeleteFunc: func(email string) error { return nil },
			args:         args{email: "test@example.com"},
			wantedErr:    nil,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalDeleteAccount := softDeleteAccount
			softDeleteAccount = tt.dbDeleteFunc

			if err := DeleteAccount(tt.args.email); err != nil && err.Error() != tt.wantedErr.Error() {
				t.Errorf("expected error to = %s, got = %s", tt.wantedErr, err)
			}

			softDeleteAccount = originalDeleteAccount
		})
	}
}

func TestPermanentlyDeleteAccount(t *testing.T) {
	type args struct {
		email string
	}
	tests := map[string]struct {
		dbDeleteFunc func(email string) error
		args         args
		wantedErr    error
	}{
		"database_error": {
			dbDeleteFunc: func(email string) error { return fmt.Errorf("database error") },
			args:         args{email: "test@example.com"},
			wantedErr:    fmt.Errorf("database error"),
		},
		"happy_path": {
			dbDeleteFunc: func(email string) error { return nil },
			args:         args{email: "test@example.com"},
			wantedErr:    nil,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalDeleteAccount := permanentlyDeleteAccount
			permanentlyDeleteAccount = tt.dbDeleteFunc

			if err := PermanentlyDeleteAccount(tt.args.email); err != nil && err.Error() != tt.wantedErr.Error() {
				t.Errorf("expected error to = %s, got = %s", tt.wantedErr, err)
			}

			permanentlyDeleteAccount = originalDeleteAccount
		})
	}
}
