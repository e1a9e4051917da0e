// Package report composes case snapshots and protects them at rest with
// authenticated encryption.
package report

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pmll/casefile/internal/model"
)

// Artifact layout: nonce || ciphertext || tag.
const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16
)

var (
	// ErrAuthentication means the tag did not verify under the given key.
	ErrAuthentication = errors.New("report authentication failed")
	// ErrMalformed means the artifact or its plaintext could not be parsed.
	ErrMalformed = errors.New("malformed report")
	// ErrKeySize means the key is not KeySize bytes.
	ErrKeySize = errors.New("invalid key size")
)

// Artifact is an encrypted snapshot.
type Artifact struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Bytes returns the persisted form nonce || ciphertext || tag.
func (a *Artifact) Bytes() []byte {
	out := make([]byte, 0, len(a.Nonce)+len(a.Ciphertext)+len(a.Tag))
	out = append(out, a.Nonce...)
	out = append(out, a.Ciphertext...)
	return append(out, a.Tag...)
}

// ParseArtifact splits a persisted artifact into its parts.
func ParseArtifact(data []byte) (*Artifact, error) {
	if len(data) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: artifact is %d bytes, need at least %d", ErrMalformed, len(data), NonceSize+TagSize)
	}
	body := data[NonceSize : len(data)-TagSize]
	return &Artifact{
		Nonce:      append([]byte(nil), data[:NonceSize]...),
		Ciphertext: append([]byte(nil), body...),
		Tag:        append([]byte(nil), data[len(data)-TagSize:]...),
	}, nil
}

// GenerateKey returns a fresh random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrKeySize, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Encrypt serializes s in canonical form and seals it under key with a
// fresh nonce.
func Encrypt(s model.Snapshot, key []byte) (*Artifact, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize
	return &Artifact{
		Nonce:      nonce,
		Ciphertext: sealed[:split:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt verifies and opens a. Nothing is decoded unless the tag verifies.
func Decrypt(a *Artifact, key []byte) (model.Snapshot, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(a.Nonce) != NonceSize || len(a.Tag) != TagSize {
		return model.Snapshot{}, fmt.Errorf("%w: nonce %d bytes, tag %d bytes", ErrMalformed, len(a.Nonce), len(a.Tag))
	}

	sealed := make([]byte, 0, len(a.Ciphertext)+TagSize)
	sealed = append(sealed, a.Ciphertext...)
	sealed = append(sealed, a.Tag...)

	plaintext, err := aead.Open(nil, a.Nonce, sealed, nil)
	if err != nil {
		return model.Snapshot{}, ErrAuthentication
	}

	var s model.Snapshot
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s, nil
}
