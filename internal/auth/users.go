package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UserDirectory checks username/password pairs against bcrypt hashes.
type UserDirectory struct {
	users map[string]string // username -> bcrypt hash

	// dummyHash is compared for unknown usernames so both rejections
	// cost the same bcrypt work.
	dummyHash []byte
}

// NewUserDirectory parses a configuration string in the format
// "user1:hash1,user2:hash2". An empty string yields a directory that
// rejects every login.
func NewUserDirectory(usersConfig string) (*UserDirectory, error) {
	users := make(map[string]string)
	dummyCost := bcrypt.MinCost

	for _, entry := range strings.Split(strings.TrimSpace(usersConfig), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		// Bcrypt hashes contain '$' but never ':'.
		username, hash, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf(
				"auth users: invalid entry format, expected user:hash",
			)
		}

		if username == "" || hash == "" {
			return nil, fmt.Errorf(
				"auth users: username and hash must not be empty",
			)
		}

		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return nil, fmt.Errorf("auth users: %s: %w", username, err)
		}
		dummyCost = max(dummyCost, cost)

		users[username] = hash
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), dummyCost)
	if err != nil {
		return nil, fmt.Errorf("auth users: dummy hash: %w", err)
	}

	return &UserDirectory{users: users, dummyHash: dummyHash}, nil
}

// Len returns the number of configured users.
func (d *UserDirectory) Len() int {
	return len(d.users)
}

// Check verifies the password and returns the username on success.
func (d *UserDirectory) Check(username, password string) (string, error) {
	hash, exists := d.users[username]
	if !exists {
		_ = bcrypt.CompareHashAndPassword(d.dummyHash, []byte(password))
		return "", fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(hash), []byte(password),
	); err != nil {
		return "", fmt.Errorf(
			"%w: wrong password", ErrInvalidCredentials,
		)
	}

	return username, nil
}

// HashPassword returns a bcrypt hash suitable for the users config.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
