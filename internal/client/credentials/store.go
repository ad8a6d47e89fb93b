// Package credentials is the durable home of the session: the bearer/refresh
// token pair, the signed-in user and the index of device keypairs.
//
// Two implementations share one contract: SQLiteStore, which survives process
// restarts, and MemoryStore for tests and ephemeral runs. Both serialize
// writes (token writes and keypair writes are critical sections) and let reads
// proceed concurrently.
package credentials

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
)

// ErrNotFound is returned for an absent user or device keypair.
var ErrNotFound = common.ErrorNotFound

// ErrNoSession is returned by CurrentUser when nobody is signed in.
var ErrNoSession = errors.New("no signed-in user")

// Store is the credential store contract.
type Store interface {
	// Tokens returns the current pair; both fields are empty when signed out.
	Tokens(ctx context.Context) (models.Tokens, error)
	// SaveTokens replaces the pair after a refresh.
	SaveTokens(ctx context.Context, t models.Tokens) error

	CurrentUser(ctx context.Context) (*models.User, error)
	// SaveLogin stores the user and the token pair in one write.
	SaveLogin(ctx context.Context, r models.AuthResult) error
	// ClearLogin drops tokens and the user but keeps device keypairs so
	// registered devices can still be revoked.
	ClearLogin(ctx context.Context) error

	// SaveDeviceKeyPair evicts any entry sharing the user id or device id.
	SaveDeviceKeyPair(ctx context.Context, kp models.DeviceKeyPair) error
	DeviceKeyPairByUserID(ctx context.Context, userID int64) (*models.DeviceKeyPair, error)
	DeviceKeyPairByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error)
	DeviceKeyPairs(ctx context.Context) ([]models.DeviceKeyPair, error)
	DeleteDeviceKeyPair(ctx context.Context, deviceID int64) error

	// Clear wipes everything, device keypairs included.
	Clear(ctx context.Context) error
}
