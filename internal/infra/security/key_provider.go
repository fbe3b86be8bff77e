package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrSigningKeyMissing  = errors.New("no private key found for signing")
	errUnsupportedKeyFile = errors.New("unsupported key file")
)

// KeyProvider defines the interface for providing cryptographic keys.
type KeyProvider interface {
	// GetSigningKey returns the active private key and its kid.
	GetSigningKey() (string, *rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// FileKeyProvider reads PEM keys from a directory. The kid of each key is its
// file name without extension; the first private key (by name) signs.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKid string
	signingKey *rsa.PrivateKey
}

// NewFileKeyProvider loads every PEM file in keyDir.
func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	provider := &FileKeyProvider{
		keys: make(map[string]*rsa.PublicKey),
	}

	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		private, public, err := parsePEM(keyData)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if private != nil && provider.signingKey == nil {
			provider.signingKey = private
			provider.signingKid = kid
		}
		provider.keys[kid] = public
	}

	if provider.signingKey == nil {
		return nil, ErrSigningKeyMissing
	}

	return provider, nil
}

func parsePEM(data []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, &key.PublicKey, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, &rsaKey.PublicKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return nil, key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey, nil
		}
	}
	return nil, nil, errUnsupportedKeyFile
}

func (p *FileKeyProvider) GetSigningKey() (string, *rsa.PrivateKey, error) {
	return p.signingKid, p.signingKey, nil
}

func (p *FileKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

func (p *FileKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// StaticKeyProvider serves a single in-memory key pair.
type StaticKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewStaticKeyProvider wraps key under kid. A nil key yields a provider that cannot sign.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{kid: kid, key: key}
}

func (p *StaticKeyProvider) GetSigningKey() (string, *rsa.PrivateKey, error) {
	if p.key == nil {
		return "", nil, ErrSigningKeyMissing
	}
	return p.kid, p.key, nil
}

func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if p.key == nil || kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

func (p *StaticKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	if p.key == nil {
		return map[string]*rsa.PublicKey{}
	}
	return map[string]*rsa.PublicKey{p.kid: &p.key.PublicKey}
}

// NewKeyProvider creates a KeyProvider based on the environment. Outside
// production a missing key directory falls back to an ephemeral key.
func NewKeyProvider(env, keyDir string) (KeyProvider, error) {
	provider, err := NewFileKeyProvider(keyDir)
	if err == nil {
		return provider, nil
	}
	if env == "production" {
		return nil, err
	}
	if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrSigningKeyMissing) {
		return nil, err
	}

	key, genErr := rsa.GenerateKey(rand.Reader, 2048)
	if genErr != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", genErr)
	}
	return NewStaticKeyProvider("ephemeral", key), nil
}

// WriteKeyPair generates an RSA key and writes <kid>.pem (PKCS#8 private) into dir.
func WriteKeyPair(dir, kid string, bits int) (string, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return "", ErrKeyIDMissing
	}
	if bits < 2048 {
		return "", fmt.Errorf("key size %d below 2048 bits", bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("marshal key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create key directory: %w", err)
	}
	path := filepath.Join(dir, kid+".pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write key: %w", err)
	}
	return path, nil
}
