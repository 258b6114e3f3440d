package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidAPIKeyHash         = errors.New("invalid api key hash format")
	ErrIncompatibleAPIKeyVersion = errors.New("incompatible api key hash version")
)

// Argon2idParams tunes the API key hash.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAPIKey returns an encoded argon2id hash of key, suitable for
// SCHEDULER_API_KEY_HASH.
func HashAPIKey(key string, params Argon2idParams) (string, error) {
	if key == "" {
		return "", errors.New("api key must not be empty")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyAPIKey returns nil when key matches encoded, ErrUnauthorized when it
// does not, and a format error when encoded cannot be parsed.
func VerifyAPIKey(encoded, key string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidAPIKeyHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIKeyHash, err)
	}
	if version != argon2.Version {
		return ErrIncompatibleAPIKeyVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIKeyHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIKeyHash, err)
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIKeyHash, err)
	}

	comparison := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(decodedHash)))
	if subtle.ConstantTimeCompare(decodedHash, comparison) == 1 {
		return nil
	}
	return ErrUnauthorized
}

const verifiedKeyCacheSize = 64

// APIKeyVerifier checks request keys against one configured hash. Keys that
// verified once are remembered by their SHA-256 digest so argon2 runs only on
// the first request with each key.
type APIKeyVerifier struct {
	hash     string
	verified *lru.Cache[[sha256.Size]byte, struct{}]
}

// NewAPIKeyVerifier validates the encoded hash up front.
func NewAPIKeyVerifier(encoded string) (*APIKeyVerifier, error) {
	if err := VerifyAPIKey(encoded, ""); err != nil && !errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	cache, err := lru.New[[sha256.Size]byte, struct{}](verifiedKeyCacheSize)
	if err != nil {
		return nil, err
	}
	return &APIKeyVerifier{hash: encoded, verified: cache}, nil
}

// Verify returns ErrUnauthorized unless key matches the configured hash.
func (v *APIKeyVerifier) Verify(ctx context.Context, key string) error {
	if v == nil {
		return ErrUnauthorized
	}
	if key == "" {
		return ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	digest := sha256.Sum256([]byte(key))
	if v.verified.Contains(digest) {
		return nil
	}
	if err := VerifyAPIKey(v.hash, key); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return ErrUnauthorized
		}
		return fmt.Errorf("verify api key: %w", err)
	}
	v.verified.Add(digest, struct{}{})
	return nil
}
