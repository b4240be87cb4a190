// Package cryptox seals small secrets (token records) under a passphrase.
// Keys are derived with argon2id and data is encrypted with AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	keyLen  = 32
	saltLen = 16
)

// ErrDecrypt is returned when a sealed envelope cannot be opened, which
// usually means the passphrase is wrong.
var ErrDecrypt = errors.New("decryption failed")

// Envelope is the serialisable result of Seal.
type Envelope struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey stretches passphrase into a 32-byte key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keyLen)
}

// Seal encrypts plaintext with a key derived from passphrase and a fresh salt.
func Seal(plaintext, passphrase []byte) (*Envelope, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	aead, err := newAEAD(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return &Envelope{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open reverses Seal.
func Open(env *Envelope, passphrase []byte) ([]byte, error) {
	if env == nil {
		return nil, ErrDecrypt
	}
	aead, err := newAEAD(DeriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrDecrypt
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
