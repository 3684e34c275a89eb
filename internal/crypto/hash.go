package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrWrongKey is returned when a key does not match the stored fingerprint.
var ErrWrongKey = errors.New("key does not match stored fingerprint")

// Fingerprint возвращает hex(SHA256) ключа.
// Хранится в метаданных, чтобы отличить неверный пароль от повреждённых данных.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// VerifyFingerprint проверяет, что ключ соответствует сохранённому отпечатку.
func VerifyFingerprint(key []byte, fingerprint string) error {
	if subtle.ConstantTimeCompare([]byte(Fingerprint(key)), []byte(fingerprint)) != 1 {
		return ErrWrongKey
	}
	return nil
}
