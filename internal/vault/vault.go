// Package vault keeps the user's model-provider credential encrypted at
// rest. The credential is advisory (it gates AI features, nothing
// safety-critical), so every cryptographic failure degrades to "credential
// absent" instead of surfacing an error: a corrupted vault asks the user to
// re-enter the key, it never crashes a call path.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mindflow/mindflow-ai/internal/kv"
)

const (
	blobKey = "vault:credential"
	keyKey  = "vault:key"

	// legacyKey is where earlier releases stored the credential in
	// plaintext. Load migrates it into the encrypted blob on first touch.
	legacyKey = "googleAiApiKey"
)

// Vault encrypts a single credential with XChaCha20-Poly1305 under a
// locally generated key and persists both through a kv.Store. Nonces are
// random and fresh per Store call; nonce reuse under one key is the one
// invariant everything here protects.
type Vault struct {
	store  kv.Store
	logger *slog.Logger
}

// New returns a Vault backed by store.
func New(store kv.Store, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{store: store, logger: logger}
}

// Store encrypts and persists secret, replacing any prior value. An empty
// secret behaves as Remove. Any legacy plaintext copy is deleted.
func (v *Vault) Store(secret string) error {
	if secret == "" {
		return v.Remove()
	}

	key, err := v.obtainKey()
	if err != nil {
		return fmt.Errorf("vault: obtain key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("vault: init cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("vault: generate nonce: %w", err)
	}

	blob := aead.Seal(nonce, nonce, []byte(secret), nil)
	if err := v.store.Set(blobKey, base64.StdEncoding.EncodeToString(blob)); err != nil {
		return fmt.Errorf("vault: persist blob: %w", err)
	}
	if err := v.store.Delete(legacyKey); err != nil {
		v.logger.Warn("vault: could not delete legacy plaintext", "error", err)
	}
	return nil
}

// Load returns the stored credential, or "" when none is usable. A legacy
// plaintext value is transparently migrated to the encrypted form. A blob
// that no longer decrypts (lost key, corrupted storage) is deleted along
// with the orphaned key and reported as absent.
func (v *Vault) Load() string {
	encoded, ok, err := v.store.Get(blobKey)
	if err != nil {
		v.logger.Warn("vault: read blob", "error", err)
		return ""
	}
	if !ok {
		return v.migrateLegacy()
	}

	secret, err := v.open(encoded)
	if err != nil {
		v.logger.Warn("vault: unusable blob, clearing", "error", err)
		v.discard()
		return ""
	}
	return secret
}

// Remove deletes the encrypted blob and the key material. Deleting the key
// invalidates anything still encrypted under it, which is fine: the blob is
// gone too, and the next Store generates a fresh key.
func (v *Vault) Remove() error {
	if err := v.store.Delete(blobKey); err != nil {
		return fmt.Errorf("vault: delete blob: %w", err)
	}
	if err := v.store.Delete(keyKey); err != nil {
		return fmt.Errorf("vault: delete key: %w", err)
	}
	if err := v.store.Delete(legacyKey); err != nil {
		v.logger.Warn("vault: could not delete legacy plaintext", "error", err)
	}
	return nil
}

// HasCredential reports whether Load would return a non-empty secret.
func (v *Vault) HasCredential() bool {
	return v.Load() != ""
}

// migrateLegacy upgrades a plaintext credential in place and returns it.
func (v *Vault) migrateLegacy() string {
	plain, ok, err := v.store.Get(legacyKey)
	if err != nil || !ok || plain == "" {
		return ""
	}

	v.logger.Info("vault: migrating legacy plaintext credential")
	if err := v.Store(plain); err != nil {
		v.logger.Warn("vault: legacy migration failed", "error", err)
		// The plaintext stays readable until migration succeeds.
		return plain
	}
	return plain
}

// open decodes and decrypts a persisted blob.
func (v *Vault) open(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode blob: %w", err)
	}
	if len(blob) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("blob shorter than nonce")
	}

	key, err := v.loadKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

// obtainKey returns the persisted key material, generating and persisting a
// fresh 256-bit key when none exists.
func (v *Vault) obtainKey() ([]byte, error) {
	if key, err := v.loadKey(); err == nil {
		return key, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := v.store.Set(keyKey, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// loadKey reads and decodes the persisted key material.
func (v *Vault) loadKey() ([]byte, error) {
	encoded, ok, err := v.store.Get(keyKey)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no key material")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key has wrong length %d", len(key))
	}
	return key, nil
}

// discard drops the blob and key after a failed decrypt.
func (v *Vault) discard() {
	if err := v.store.Delete(blobKey); err != nil {
		v.logger.Warn("vault: delete unusable blob", "error", err)
	}
	if err := v.store.Delete(keyKey); err != nil {
		v.logger.Warn("vault: delete orphaned key", "error", err)
	}
}
