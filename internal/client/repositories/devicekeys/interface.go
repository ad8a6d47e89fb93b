package devicekeys

import (
	"context"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
)

// Repository stores DeviceKeyPair rows. Lookups of absent rows return
// common.ErrorNotFound.
type Repository interface {
	// Upsert replaces every row sharing the device id or the user id of kp.
	Upsert(ctx context.Context, kp models.DeviceKeyPair) error

	GetByUserID(ctx context.Context, userID int64) (*models.DeviceKeyPair, error)
	GetByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error)
	List(ctx context.Context) ([]models.DeviceKeyPair, error)

	// DeleteByDeviceID is a no-op for an unknown device.
	DeleteByDeviceID(ctx context.Context, deviceID int64) error
	Clear(ctx context.Context) error
}
