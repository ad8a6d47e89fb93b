// Package cryptox holds the device key material helpers: Ed25519 signing keys,
// the X25519 key-agreement keys WireGuard needs, and the signed authorization
// value the backend accepts on device-identified endpoints.
package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var (
	// ErrConversion is returned when signing-curve key material cannot be
	// mapped to the key-agreement curve.
	ErrConversion = errors.New("key conversion failed")
	// ErrInvalidKey is returned when a signing key cannot be decoded.
	ErrInvalidKey = errors.New("invalid signing key")
	// ErrBadSignature is returned by VerifySignedAuthorization.
	ErrBadSignature = errors.New("signature verification failed")
)

// KeyAgreementPair is the X25519 keypair derived from a device signing key.
type KeyAgreementPair struct {
	PublicKey  wgtypes.Key
	PrivateKey wgtypes.Key
}

// GenerateSigningKeyPair creates a fresh Ed25519 keypair.
func GenerateSigningKeyPair() (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("generating Ed25519 keypair: %v", err))
	}
	return pub, priv
}

// signingSeed accepts a bare 32-byte seed or the 64-byte seed||public form.
func signingSeed(key []byte) ([]byte, bool) {
	switch len(key) {
	case ed25519.SeedSize, ed25519.PrivateKeySize:
		return key[:ed25519.SeedSize], true
	default:
		return nil, false
	}
}

// DeriveKeyAgreementKeyPair converts an Ed25519 private key (seed or
// seed||public) into the X25519 keypair used by the tunnel. The scalar is the
// clamped lower half of SHA-512(seed), which is the scalar Ed25519 itself
// signs with, so the public half matches SigningPublicKeyToKeyAgreement.
func DeriveKeyAgreementKeyPair(signingPrivateKey []byte) (KeyAgreementPair, error) {
	seed, ok := signingSeed(signingPrivateKey)
	if !ok {
		return KeyAgreementPair{}, fmt.Errorf("%w: private key has %d bytes, want %d or %d",
			ErrConversion, len(signingPrivateKey), ed25519.SeedSize, ed25519.PrivateKeySize)
	}

	h := sha512.Sum512(seed)
	defer common.WipeByteArray(h[:])
	var scalar [32]byte
	defer common.WipeByteArray(scalar[:])
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return KeyAgreementPair{}, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	var pair KeyAgreementPair
	copy(pair.PrivateKey[:], scalar[:])
	copy(pair.PublicKey[:], pub)
	return pair, nil
}

// SigningPublicKeyToKeyAgreement maps an Ed25519 public key to its X25519
// (Montgomery u-coordinate) form.
func SigningPublicKeyToKeyAgreement(pub []byte) (wgtypes.Key, error) {
	if len(pub) != ed25519.PublicKeySize {
		return wgtypes.Key{}, fmt.Errorf("%w: public key has %d bytes, want %d",
			ErrConversion, len(pub), ed25519.PublicKeySize)
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return wgtypes.NewKey(p.BytesMontgomery())
}

// Sign returns the Ed25519 signature of message.
func Sign(message, privateKey []byte) ([]byte, error) {
	seed, ok := signingSeed(privateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key has %d bytes", ErrInvalidKey, len(privateKey))
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed), message), nil
}

// BuildSignedAuthorization returns base64(signature || message), the value the
// backend's signature middleware expects.
func BuildSignedAuthorization(message, privateKey []byte) (string, error) {
	sig, err := Sign(message, privateKey)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, len(sig)+len(message))
	payload = append(payload, sig...)
	payload = append(payload, message...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// VerifySignedAuthorization is the backend-side check of a value produced by
// BuildSignedAuthorization. It returns the embedded message.
func VerifySignedAuthorization(value string, pub ed25519.PublicKey) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(payload) < ed25519.SignatureSize || len(pub) != ed25519.PublicKeySize {
		return nil, ErrBadSignature
	}
	sig, msg := payload[:ed25519.SignatureSize], payload[ed25519.SignatureSize:]
	if !ed25519.Verify(pub, msg, sig) {
		return nil, ErrBadSignature
	}
	return msg, nil
}

// EncodeKey is the base64 form keys take on the wire and at rest.
func EncodeKey(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeKey decodes a base64 key and checks its length.
func DecodeKey(s string, size int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidKey, len(b), size)
	}
	return b, nil
}
