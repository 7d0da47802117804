package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// KeyPair holds a generated Ed25519 key pair in the 64-byte seed‖public
// on-disk form (base64-encoded in the key file).
type KeyPair struct {
	Private ed25519.PrivateKey // 64 bytes: seed ‖ public key
	Public  ed25519.PublicKey  // 32 bytes
}

// GenerateKeyPair creates a new key pair using a cryptographic RNG.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signing: generate keypair: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// Sign computes the Ed25519 signature over msg.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether signature is a valid Ed25519 signature over msg
// under pub. It returns false — never an error — on any malformed input:
// the spec draws no distinction between "malformed" and "invalid", both
// surface as unauthentic.
func Verify(pub ed25519.PublicKey, msg, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, signature)
}

// EncodePublicKey base64-encodes a 32-byte public key for embedding in
// metadata.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// DecodePublicKey decodes a base64 public key. Returns ok=false on any
// decode or length failure rather than an error, so callers can fold it
// directly into a verification verdict.
func DecodePublicKey(s string) (ed25519.PublicKey, bool) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != ed25519.PublicKeySize {
		return nil, false
	}
	return ed25519.PublicKey(b), true
}

// EncodeSignature base64-encodes a 64-byte signature.
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// DecodeSignature decodes a base64 signature. Returns ok=false on any
// decode or length failure.
func DecodeSignature(s string) ([]byte, bool) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != ed25519.SignatureSize {
		return nil, false
	}
	return b, true
}

// WriteKeyFile persists priv as base64(seed‖public) with 0600 permissions.
// Refuses to overwrite an existing file.
func WriteKeyFile(path string, priv ed25519.PrivateKey) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("signing: refusing to overwrite existing key file %s", path)
	}
	encoded := base64.StdEncoding.EncodeToString(priv)
	return os.WriteFile(path, []byte(encoded), 0o600)
}

// ReadKeyFile loads a private key previously written by WriteKeyFile.
func ReadKeyFile(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: read key file: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("signing: decode key file: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing: key file has unexpected length %d", len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}
