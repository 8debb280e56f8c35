package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	MinIterations     = 100_000
	DefaultIterations = 310_000
	SaltLength        = 16
	KeyLength         = 32
	MinPasswordLen    = 8
	MaxPasswordLen    = 128

	digestScheme = "pbkdf2-sha256"
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrMalformedDigest  = errors.New("malformed password digest")
)

// PasswordValidationError holds every policy rule the password violated
type PasswordValidationError struct {
	Violations []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "password validation failed"
	}
	return "invalid password: " + strings.Join(e.Violations, "; ")
}

// ValidatePassword enforces the password composition policy
func ValidatePassword(password string) error {
	violations := make([]string, 0)

	length := utf8.RuneCountInString(password)
	if length < MinPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if length > MaxPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false
	hasSpace := false

	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			hasSpace = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if !hasSymbol {
		violations = append(violations, "must contain at least one symbol")
	}
	if hasSpace {
		violations = append(violations, "must not contain whitespace")
	}

	if len(violations) > 0 {
		return &PasswordValidationError{Violations: violations}
	}

	return nil
}

// PasswordHasher derives salted PBKDF2-HMAC-SHA256 digests.
// Digests are self-describing, so changing the iteration count does not
// invalidate digests produced with an older count.
type PasswordHasher struct {
	iterations int
	dummy      string
}

// NewPasswordHasher creates a hasher using the given iteration count
func NewPasswordHasher(iterations int) (*PasswordHasher, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("pbkdf2 iterations must be at least %d (got %d)", MinIterations, iterations)
	}

	h := &PasswordHasher{iterations: iterations}

	dummySecret, err := GenerateRandomSecret(KeyLength)
	if err != nil {
		return nil, err
	}
	if h.dummy, err = h.Hash(dummySecret); err != nil {
		return nil, err
	}

	return h, nil
}

// Hash returns the encoded digest for password. Plaintext is never retained.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, h.iterations, KeyLength, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		digestScheme,
		h.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare checks password against digest in constant time
func (h *PasswordHasher) Compare(digest, password string) error {
	iterations, salt, expected, err := parseDigest(digest)
	if err != nil {
		return err
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// CompareDummy spends the same work as Compare against a throwaway digest.
// Used when no account matches so lookups cannot be told apart by latency.
func (h *PasswordHasher) CompareDummy(password string) {
	_ = h.Compare(h.dummy, password)
}

func parseDigest(digest string) (int, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 4 || parts[0] != digestScheme {
		return 0, nil, nil, ErrMalformedDigest
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < MinIterations {
		return 0, nil, nil, ErrMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, ErrMalformedDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, ErrMalformedDigest
	}

	return iterations, salt, key, nil
}

// GenerateRandomSecret returns n random bytes, URL-safe base64 encoded
func GenerateRandomSecret(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
