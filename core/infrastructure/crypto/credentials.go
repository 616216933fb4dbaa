// Package crypto seals connection credentials at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

const (
	// DefaultSalt is used when no salt is configured.
	DefaultSalt   = "dataask_salt"
	kdfIterations = 100_000
	keyLength     = 32
)

// CredentialCipher encrypts connection credentials with AES-256-GCM. The key
// is derived from a passphrase with PBKDF2-SHA256. Ciphertexts are URL-safe
// base64 of nonce || sealed JSON.
type CredentialCipher struct {
	gcm cipher.AEAD
}

var _ interfaces.Decrypter = (*CredentialCipher)(nil)

// NewCredentialCipher derives the key from passphrase and salt.
func NewCredentialCipher(passphrase, salt string) (*CredentialCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	if salt == "" {
		salt = DefaultSalt
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &CredentialCipher{gcm: gcm}, nil
}

// Encrypt seals creds as JSON.
func (c *CredentialCipher) Encrypt(creds domain.Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *CredentialCipher) Decrypt(ciphertext string) (domain.Credentials, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var creds domain.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}
