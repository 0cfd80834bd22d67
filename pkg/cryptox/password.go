package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following the OWASP baseline. Hashes embed their own
// parameters, so these can be tuned later without invalidating stored hashes.
const (
	defaultMemory      uint32 = 64 * 1024
	defaultIterations  uint32 = 3
	defaultParallelism uint8  = 2
	saltLength         int    = 16
	keyLength          uint32 = 32
)

// Hasher produces and verifies Argon2id password hashes in PHC string format.
// An optional Pepper is appended to every password before hashing; it is
// injected at construction rather than read from process-global state.
type Hasher struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	Pepper      string
}

// NewHasher returns a Hasher with the default parameters and the given pepper.
// An empty pepper is valid.
func NewHasher(pepper string) *Hasher {
	return &Hasher{
		Memory:      defaultMemory,
		Iterations:  defaultIterations,
		Parallelism: defaultParallelism,
		Pepper:      pepper,
	}
}

// Hash generates a PHC-format Argon2id hash string including salt and parameters.
// Two calls with the same password produce different strings (random salt);
// equality must be checked with Verify.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		h.Iterations,
		h.Memory,
		h.Parallelism,
		keyLength,
	)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(digest)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		h.Memory,
		h.Iterations,
		h.Parallelism,
		b64Salt,
		b64Hash,
	), nil
}

// Verify compares a plaintext password against a PHC-style Argon2id hash.
// Malformed hashes report false rather than returning an error.
func (h *Hasher) Verify(password, encodedHash string) bool {
	// Parse PHC format: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
	parts := make([]string, 0, 6)
	start := 0
	for i := range len(encodedHash) {
		if encodedHash[i] == '$' {
			parts = append(parts, encodedHash[start:i])
			start = i + 1
		}
	}
	parts = append(parts, encodedHash[start:])

	// Expected structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - digest lengths are tiny
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
