// Package models defines client-side data models used by the wgdaemon client.
package models

import (
	"crypto/ed25519"

	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
)

// DeviceKeyPair is the locally persisted identity of a registered daemon.
// It is indexed by both UserID and DeviceID; the store keeps at most one entry
// per user and one per device.
type DeviceKeyPair struct {
	// DeviceName is the display name chosen at registration.
	DeviceName string

	// DeviceID is the server-assigned daemon identifier.
	DeviceID int64

	// UserID is the owner of the daemon.
	UserID int64

	// CompanyName addresses the owning company in backend paths.
	CompanyName string

	// SigningPublicKey is the Ed25519 key the backend knows the daemon by.
	SigningPublicKey ed25519.PublicKey
	// SigningPrivateKey signs device-identified requests. Never leaves the store
	// except to sign.
	SigningPrivateKey ed25519.PrivateKey
}

// KeyAgreement derives the X25519 keypair for the tunnel. It is computed on
// demand and never stored next to the signing keys.
func (d DeviceKeyPair) KeyAgreement() (cryptox.KeyAgreementPair, error) {
	return cryptox.DeriveKeyAgreementKeyPair(d.SigningPrivateKey)
}
