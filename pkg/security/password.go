// Package security hashes shopper passwords with Argon2id.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
)

// OAuthOnlyHash marks accounts created through a social provider. It never
// parses as an Argon2id hash so password login always fails for them.
const OAuthOnlyHash = "__OAUTH_ONLY__"

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

var ErrInvalidHash = errors.New("invalid argon2id hash")

// argonParams are stored inside every hash as $argon2id$v=19$m=..,t=..,p=..$salt$key.
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

func (p argonParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// Hasher hashes with the parameters from config and tells callers when a
// stored hash was made with different ones.
type Hasher struct {
	params argonParams
	// decoy is verified against when there is no stored hash, so an unknown
	// email costs as much as a wrong password.
	decoy string
}

func NewHasher(cfg config.PasswordConfig) (*Hasher, error) {
	h := &Hasher{params: argonParams{
		memory:  clamp(cfg.ArgonMemoryKB, 8, 512*1024),
		time:    clamp(cfg.ArgonTime, 1, 10),
		threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen: clamp(cfg.ArgonSaltLen, 8, 64),
		keyLen:  clamp(cfg.ArgonKeyLen, 16, 64),
	}}
	decoy, err := h.Hash("decoy-password")
	if err != nil {
		return nil, err
	}
	h.decoy = decoy
	return h, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encodeHash(h.params, salt, h.params.key(password, salt)), nil
}

// Verify reports whether password matches encoded. stale is true for a match
// whose hash used other parameters than h; the caller should store a new
// hash. OAuthOnlyHash never matches and is not an error.
func (h *Hasher) Verify(password, encoded string) (match, stale bool, err error) {
	if IsOAuthOnly(encoded) {
		return false, false, nil
	}
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, false, err
	}
	if subtle.ConstantTimeCompare(key, params.key(password, salt)) != 1 {
		return false, false, nil
	}
	return true, params != h.params, nil
}

// VerifyDecoy spends the time of one Verify and always fails.
func (h *Hasher) VerifyDecoy(password string) {
	_, _, _ = h.Verify(password+"\x00", h.decoy)
}

func IsOAuthOnly(encoded string) bool {
	return encoded == OAuthOnlyHash
}

func encodeHash(p argonParams, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeHash(encoded string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

func clamp(value, lo, hi int) uint32 {
	return uint32(min(max(value, lo), hi))
}
