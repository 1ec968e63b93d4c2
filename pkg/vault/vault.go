package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/stockline-hq/stockline-backend/pkg/config"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

const (
	keyLen   = 32
	ivLen    = 16
	tagLen   = 16
	fieldSep = ":"
)

// Vault encrypts and decrypts individual credential values with a
// process-wide AES-256-GCM key. Tokens are three colon-delimited hex
// fields: iv, auth tag, ciphertext. A fresh random IV is drawn per call,
// so encrypting the same plaintext twice yields different tokens.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from configuration. The key is either supplied as
// 64 hex chars or stretched from a passphrase+salt with argon2id; it is
// never persisted alongside the data it protects.
func New(cfg config.VaultConfig) (*Vault, error) {
	key, err := keyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithKey(key)
}

// NewWithKey builds a vault around a raw 32-byte key.
func NewWithKey(key []byte) (*Vault, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

func keyFromConfig(cfg config.VaultConfig) ([]byte, error) {
	if hexKey := strings.TrimSpace(cfg.KeyHex); hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("decoding vault key hex: %w", err)
		}
		if len(key) != keyLen {
			return nil, fmt.Errorf("vault key must decode to %d bytes, got %d", keyLen, len(key))
		}
		return key, nil
	}

	passphrase := strings.TrimSpace(cfg.Passphrase)
	salt := strings.TrimSpace(cfg.KeySalt)
	if passphrase == "" || salt == "" {
		return nil, fmt.Errorf("either %s or both %s and %s are required",
			"STOCKLINE_VAULT_KEY_HEX", "STOCKLINE_VAULT_PASSPHRASE", "STOCKLINE_VAULT_KEY_SALT")
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), 3, 64*1024, 2, keyLen), nil
}

// Encrypt seals a plaintext into a token.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	// Seal appends the auth tag; split it out so the token matches the
	// iv:tag:ciphertext layout credentials are stored in.
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, fieldSep), nil
}

// Decrypt opens a token produced by Encrypt. Malformed tokens, auth tag
// mismatches, and wrong-key decrypts all fail with CodeDecryption rather
// than returning a corrupted value.
func (v *Vault) Decrypt(token string) (string, error) {
	parts := strings.Split(token, fieldSep)
	if len(parts) != 3 {
		return "", pkgerrors.New(pkgerrors.CodeDecryption, "malformed credential token")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLen {
		return "", pkgerrors.New(pkgerrors.CodeDecryption, "malformed credential token iv")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return "", pkgerrors.New(pkgerrors.CodeDecryption, "malformed credential token tag")
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeDecryption, "malformed credential token ciphertext")
	}

	plaintext, err := v.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDecryption, err, "opening credential token")
	}
	return string(plaintext), nil
}

// EncryptMap encrypts every value of a credential map independently.
func (v *Vault) EncryptMap(fields map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		token, err := v.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("encrypting field %q: %w", name, err)
		}
		out[name] = token
	}
	return out, nil
}

// DecryptField decrypts a single field from a stored credential map.
// A missing field is reported distinctly from a decryption failure.
func (v *Vault) DecryptField(fields map[string]string, name string) (string, error) {
	token, ok := fields[name]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("credential field %q not set", name))
	}
	return v.Decrypt(token)
}
