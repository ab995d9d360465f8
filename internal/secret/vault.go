// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/rigchat/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

// EncryptedPrefix marks a value as encrypted (format: ENC:base64(nonce|ciphertext|tag))
const EncryptedPrefix = "ENC:"

// NonceSize is the AES-GCM nonce size (12 bytes / 96 bits)
const NonceSize = 12

// KeySize is the AES-256 key size (32 bytes / 256 bits)
const KeySize = 32

// SaltSize is the PBKDF2 salt size (32 bytes)
const SaltSize = 32

// PBKDF2Iterations is the PBKDF2-SHA-256 iteration count.
// OWASP recommends 600,000+ to resist brute force on modern hardware.
const PBKDF2Iterations = 600000

const (
	keyFileName  = "master.key"
	saltFileName = "master.salt"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrNotInitialized indicates no master key is available yet
	ErrNotInitialized = errors.New("secret store not initialized: run 'rigchat config set-key'")
	// ErrInvalidCiphertext indicates the ciphertext format is invalid
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates decryption failed (wrong key or tampered data)
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// ============================================================================
// HELPERS
// ============================================================================

// ZeroBytes zeros sensitive byte slices.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// IsEncrypted reports whether a stored value carries the ENC: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// DeriveKey derives an AES-256 key from a password and salt using
// PBKDF2-SHA-256.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// GenerateSalt returns a cryptographically random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// generateMasterKey returns a cryptographically random AES-256 key.
func generateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// ============================================================================
// VAULT
// ============================================================================

// Vault encrypts and decrypts secret values with AES-256-GCM.
// A zero-value Vault is not usable; construct one with Open or
// OpenWithPassword.
type Vault struct {
	mu       sync.RWMutex
	aead     cipher.AEAD
	keyPath  string
	saltPath string
}

// Open returns a vault rooted at dir. If a master key file exists it is
// loaded; otherwise the vault starts uninitialized and Init must be called
// before encrypting.
func Open(dir string) (*Vault, error) {
	v := &Vault{
		keyPath:  filepath.Join(dir, keyFileName),
		saltPath: filepath.Join(dir, saltFileName),
	}

	key, err := v.readKeyFile()
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, err
	}
	defer ZeroBytes(key)

	if err := v.initCipher(key); err != nil {
		return nil, err
	}
	return v, nil
}

// OpenWithPassword returns a vault whose key is derived from password and
// the salt file under dir. Nothing key-like is read from or written to
// disk beyond the salt.
func OpenWithPassword(dir, password string) (*Vault, error) {
	v := &Vault{
		keyPath:  filepath.Join(dir, keyFileName),
		saltPath: filepath.Join(dir, saltFileName),
	}

	salt, err := os.ReadFile(v.saltPath)
	if err != nil {
		return nil, fmt.Errorf("no salt file; initialize with InitWithPassword first: %w", err)
	}

	key := DeriveKey(password, salt)
	defer ZeroBytes(key)

	if err := v.initCipher(key); err != nil {
		return nil, err
	}
	return v, nil
}

// Initialized reports whether the vault can encrypt and decrypt.
func (v *Vault) Initialized() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.aead != nil
}

// Init generates a random master key, stores it at 0600 under the vault
// directory, and readies the cipher. Calling Init on an initialized vault
// is an error; the existing key must not be silently replaced.
func (v *Vault) Init() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead != nil {
		return fmt.Errorf("secret store already initialized at %s", v.keyPath)
	}

	key, err := generateMasterKey()
	if err != nil {
		return err
	}
	defer ZeroBytes(key)

	if err := v.writeKeyFile(key); err != nil {
		return err
	}

	if err := v.initCipher(key); err != nil {
		_ = os.Remove(v.keyPath)
		return err
	}
	return nil
}

// InitWithPassword derives the master key from password, persists only the
// salt, and readies the cipher. The caller must supply the same password on
// every later OpenWithPassword.
func (v *Vault) InitWithPassword(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead != nil {
		return fmt.Errorf("secret store already initialized at %s", v.keyPath)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(v.saltPath, salt, 0600, 0700); err != nil {
		return fmt.Errorf("failed to save salt: %w", err)
	}

	key := DeriveKey(password, salt)
	defer ZeroBytes(key)

	if err := v.initCipher(key); err != nil {
		_ = os.Remove(v.saltPath)
		return err
	}
	return nil
}

// initCipher builds the AES-GCM cipher. Caller holds the lock.
func (v *Vault) initCipher(key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	v.aead = gcm
	return nil
}

// ============================================================================
// KEY FILE
// ============================================================================

// writeKeyFile stores the master key with owner-only permissions.
func (v *Vault) writeKeyFile(key []byte) error {
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(v.keyPath, key, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// readKeyFile loads the master key, refusing keys readable by group or
// world.
func (v *Vault) readKeyFile() ([]byte, error) {
	info, err := os.Stat(v.keyPath)
	if err != nil {
		return nil, err
	}

	// SECURITY: A group or world readable key file is treated as compromised.
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return nil, fmt.Errorf("key file %s has insecure permissions (%o); fix with: chmod 600 %s",
			v.keyPath, mode, v.keyPath)
	}

	key, err := os.ReadFile(v.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(key) != KeySize {
		ZeroBytes(key)
		return nil, fmt.Errorf("key file %s is corrupt: %d bytes, want %d", v.keyPath, len(key), KeySize)
	}
	return key, nil
}

// ============================================================================
// ENCRYPT / DECRYPT
// ============================================================================

// Encrypt seals plaintext as nonce || ciphertext || tag.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return nil, ErrNotInitialized
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (v *Vault) Decrypt(ciphertext []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return nil, ErrNotInitialized
	}
	if len(ciphertext) < NonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:NonceSize]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString seals a string and returns it with the ENC: prefix.
func (v *Vault) EncryptString(plaintext string) (string, error) {
	ciphertext, err := v.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString opens a value produced by EncryptString. Values without the
// ENC: prefix are returned unchanged so plaintext configs keep working.
func (v *Vault) DecryptString(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding: %w", err)
	}

	plaintext, err := v.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
