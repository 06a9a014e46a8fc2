// Package superkey stores the privileged access key encrypted at rest.
// The key is sealed with an age X25519 identity kept next to it, so a
// plain file read is never enough to recover it.
package superkey

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

const encPrefix = "ENC[age:"
const encSuffix = "]"

// Store manages the identity key pair and the sealed superkey on disk.
type Store struct {
	keyPath      string
	superkeyPath string
}

func New(keyPath, superkeyPath string) *Store {
	return &Store{keyPath: keyPath, superkeyPath: superkeyPath}
}

// EnsureIdentity creates an X25519 key pair at the key path with 0o600.
// It is idempotent: if the file already exists, it does nothing.
func (s *Store) EnsureIdentity() error {
	if _, err := os.Stat(s.keyPath); err == nil {
		return nil // already exists
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generate age identity: %w", err)
	}

	content := fmt.Sprintf("# created by rootd\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(s.keyPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write age key: %w", err)
	}
	return nil
}

func (s *Store) loadIdentity() (*age.X25519Identity, error) {
	f, err := os.Open(s.keyPath)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", s.keyPath)
	}

	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", s.keyPath)
	}
	return id, nil
}

// Set seals the key and writes it to the superkey path with 0o600.
func (s *Store) Set(key string) error {
	if key == "" {
		return fmt.Errorf("superkey must not be empty")
	}
	if err := s.EnsureIdentity(); err != nil {
		return err
	}
	identity, err := s.loadIdentity()
	if err != nil {
		return err
	}
	blob, err := encrypt(key, identity.Recipient())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.superkeyPath), 0o755); err != nil {
		return fmt.Errorf("create superkey directory: %w", err)
	}
	if err := os.WriteFile(s.superkeyPath, []byte(blob+"\n"), 0o600); err != nil {
		return fmt.Errorf("write superkey: %w", err)
	}
	return nil
}

// Load reads the sealed superkey and returns the plaintext.
func (s *Store) Load() (string, error) {
	raw, err := os.ReadFile(s.superkeyPath)
	if err != nil {
		return "", fmt.Errorf("read superkey: %w", err)
	}
	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}
	return decrypt(strings.TrimSpace(string(raw)), identity)
}

// IsSet reports whether a superkey has been stored.
func (s *Store) IsSet() bool {
	_, err := os.Stat(s.superkeyPath)
	return err == nil
}

// Clear removes the stored superkey. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.superkeyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove superkey: %w", err)
	}
	return nil
}

// Verify compares candidate against the stored key in constant time.
func (s *Store) Verify(candidate string) (bool, error) {
	stored, err := s.Load()
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

func encrypt(plaintext string, recipient *age.X25519Recipient) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("age encrypt init: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt close: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return encPrefix + encoded + encSuffix, nil
}

func decrypt(blob string, identity *age.X25519Identity) (string, error) {
	if !isSealed(blob) {
		return "", fmt.Errorf("not a sealed blob")
	}

	encoded := blob[len(encPrefix) : len(blob)-len(encSuffix)]
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}

	plainBytes, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read decrypted: %w", err)
	}
	return string(plainBytes), nil
}

func isSealed(s string) bool {
	return strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}
