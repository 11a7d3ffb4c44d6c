package journal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

const (
	envEnableEncryption = "PAPERCRUMPLER_ENABLE_ENCRYPTION"
	envEncryptionSecret = "PAPERCRUMPLER_ENCRYPTION_SECRET"
	minSecretLength     = 32
)

// encryptor seals journal text with AES-GCM. A nil gcm passes text through.
type encryptor struct {
	gcm cipher.AEAD
}

func newEncryptor() (*encryptor, error) {
	if os.Getenv(envEnableEncryption) != "true" {
		return &encryptor{}, nil
	}

	key, err := deriveKey(os.Getenv(envEncryptionSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &encryptor{gcm: gcm}, nil
}

func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s environment variable is required when encryption is enabled", envEncryptionSecret)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", minSecretLength)
	}
	salt := []byte(constants.JournalEncryptionSalt)
	return pbkdf2.Key([]byte(secret), salt, models.Iterations, models.KeySize, sha256.New), nil
}

func (e *encryptor) enabled() bool {
	return e.gcm != nil
}

func (e *encryptor) encrypt(plaintext string) (string, error) {
	if plaintext == "" || !e.enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *encryptor) decrypt(ciphertext string) (string, error) {
	if ciphertext == "" || !e.enabled() {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(data) < models.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.gcm.Open(nil, data[:models.NonceSize], data[models.NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
