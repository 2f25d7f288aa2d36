package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"

	"pinbin/svc/util"
)

const maxPasswordLength = 1024

// ErrMalformedHash marks a stored credential that cannot be decoded. This is
// a data error, distinct from a wrong-password verification failure.
var ErrMalformedHash = errors.New("malformed credential encoding")

// Hasher derives and verifies argon2id credentials. Output is the standard
// "$argon2id$v=..$m=..,t=..,p=..$salt$key" encoding with a fresh random salt
// per call, so two hashes of the same password never compare equal.
type Hasher struct {
	iterations  uint32
	memory      uint32
	parallelism uint8
	keyLength   uint32
}

func NewHasher(time, memory uint32, parallelism uint8) (*Hasher, error) {
	if time == 0 || time > 100 {
		return nil, errors.New("iterations must be between 1 and 100")
	}
	if memory < 8*1024 || memory > 2*1024*1024 {
		return nil, errors.New("memory must be between 8192 and 2097152 KiB")
	}
	if parallelism == 0 || parallelism > 128 {
		return nil, errors.New("parallelism must be between 1 and 128")
	}
	return &Hasher{
		iterations:  time,
		memory:      memory,
		parallelism: parallelism,
		keyLength:   32,
	}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordLength {
		return "", errors.New("password too long")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}
	key := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Key := base64.RawStdEncoding.EncodeToString(key)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.iterations, h.parallelism, b64Salt, b64Key), nil
}

// Verify re-derives the key from password using the parameters and salt baked
// into encoded and compares in constant time. A credential that does not
// decode returns ErrMalformedHash rather than a silent mismatch.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if len(password) > maxPasswordLength {
		return false, nil
	}
	mem, iter, threads, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(password), salt, iter, mem, threads, uint32(len(key)))
	defer util.Wipe(derived)
	return subtle.ConstantTimeCompare(key, derived) == 1, nil
}

func decode(encoded string) (mem, iter uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &threads); err != nil {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	if mem > 2*1024*1024 || iter > 1000 || threads > 128 || mem == 0 || iter == 0 || threads == 0 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 256 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	return mem, iter, threads, salt, key, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher is configured with.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	mem, iter, threads, _, _, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return mem < h.memory || iter < h.iterations || threads < h.parallelism, nil
}
