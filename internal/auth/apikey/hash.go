package apikey

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm constants.
const (
	HashAlgSHA256    = "sha256"
	HashAlgSHA512    = "sha512"
	HashAlgBcrypt    = "bcrypt"
	HashAlgPlaintext = "plaintext"
)

// IsValidHashAlgorithm reports whether algorithm is supported.
func IsValidHashAlgorithm(algorithm string) bool {
	switch algorithm {
	case HashAlgSHA256, HashAlgSHA512, HashAlgBcrypt, HashAlgPlaintext:
		return true
	default:
		return false
	}
}

// IsDeterministic reports whether algorithm always produces the same hash
// for a key, which is required to index stores by hash.
func IsDeterministic(algorithm string) bool {
	return algorithm != HashAlgBcrypt && IsValidHashAlgorithm(algorithm)
}

// HashKey hashes an API key using the given algorithm.
func HashKey(key, algorithm string) (string, error) {
	switch algorithm {
	case HashAlgSHA256:
		hash := sha256.Sum256([]byte(key))
		return hex.EncodeToString(hash[:]), nil
	case HashAlgSHA512:
		hash := sha512.Sum512([]byte(key))
		return hex.EncodeToString(hash[:]), nil
	case HashAlgBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case HashAlgPlaintext:
		return key, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedHash, algorithm)
	}
}

// indexHash returns the lookup hash of key for a deterministic algorithm.
func indexHash(key, algorithm string) (string, error) {
	if !IsDeterministic(algorithm) {
		return "", fmt.Errorf("%w: %s", ErrNonDeterministicHash, algorithm)
	}
	return HashKey(key, algorithm)
}

// VerifyKey checks key against a stored hash in constant time.
func VerifyKey(key, storedHash, algorithm string) bool {
	if algorithm == HashAlgBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(key)) == nil
	}
	hash, err := HashKey(key, algorithm)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(storedHash)) == 1
}
