// Package cryptox implements the account-file encryption scheme used by
// Steam Desktop Authenticator: PBKDF2-HMAC-SHA1 key derivation into
// AES-256-CBC with PKCS7 padding. Salt and IV are stored per account in the
// manifest, so both sides of the scheme are parameterised on them.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations matches Rfc2898DeriveBytes defaults used upstream.
	PBKDF2Iterations = 50000

	KeySize  = 32 // AES-256
	IVSize   = aes.BlockSize
	SaltSize = 8
)

// ErrDecrypt reports that a ciphertext could not be decrypted, most likely
// because the passkey is wrong. The underlying cause is deliberately not
// distinguished further.
var ErrDecrypt = errors.New("cryptox: decryption failed")

// DeriveKey derives the AES key for a passkey and base64-encoded salt.
func DeriveKey(passkey, saltB64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("cryptox: malformed salt: %w", err)
	}
	return pbkdf2.Key([]byte(passkey), salt, PBKDF2Iterations, KeySize, sha1.New), nil
}

// Encrypt encrypts plaintext under the key derived from passkey and salt,
// returning base64-encoded ciphertext.
func Encrypt(passkey, saltB64, ivB64 string, plaintext []byte) (string, error) {
	key, err := DeriveKey(passkey, saltB64)
	if err != nil {
		return "", err
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", fmt.Errorf("cryptox: malformed iv: %w", err)
	}
	if len(iv) != IVSize {
		return "", fmt.Errorf("cryptox: iv must be %d bytes, got %d", IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A wrong passkey surfaces as ErrDecrypt.
func Decrypt(passkey, saltB64, ivB64, ciphertextB64 string) ([]byte, error) {
	key, err := DeriveKey(passkey, saltB64)
	if err != nil {
		return nil, err
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("cryptox: malformed iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("cryptox: malformed ciphertext: %w", err)
	}
	if len(iv) != IVSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// NewSalt returns a fresh random salt, base64 encoded.
func NewSalt() (string, error) {
	return randomB64(SaltSize)
}

// NewIV returns a fresh random IV, base64 encoded.
func NewIV() (string, error) {
	return randomB64(IVSize)
}

func randomB64(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: failed to read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	pad := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+pad)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("cryptox: invalid padded length")
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > blockSize {
		return nil, errors.New("cryptox: invalid padding")
	}
	for _, c := range b[len(b)-pad:] {
		if int(c) != pad {
			return nil, errors.New("cryptox: invalid padding")
		}
	}
	return b[:len(b)-pad], nil
}
