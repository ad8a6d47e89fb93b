package client

import (
	"context"
	"crypto/ed25519"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
)

// Client is the backend contract used by the services. Device endpoints take
// a signed authorization value produced by the signer package; the others
// use the stored bearer token.
type Client interface {
	AuthenticateUser(ctx context.Context, provider models.AuthProvider, idToken string) (*models.AuthResult, error)
	SendVerificationCode(ctx context.Context, email string) error
	VerifyEmailCode(ctx context.Context, email string, code int) (*models.AuthResult, error)
	Logout(ctx context.Context) error

	CreateDaemon(ctx context.Context, company string, userID int64, publicKey ed25519.PublicKey, name string) (*models.Daemon, error)
	DeleteDaemon(ctx context.Context, company string, deviceID int64, authorization string) error
	GetNetworkPeer(ctx context.Context, company string, deviceID int64, authorization string) (*models.NetworkPeer, error)
	GetDaemonInfo(ctx context.Context, company string, deviceID int64, authorization string) (*models.DaemonInfo, error)
}
