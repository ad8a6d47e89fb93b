package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/tunnel"
	"github.com/dmitrijs2005/wgdaemon/internal/client/wgconfig"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
)

// DeviceService manages daemons that are already registered.
type DeviceService interface {
	Devices(ctx context.Context) ([]models.DeviceKeyPair, error)
	DeviceStatus(ctx context.Context, deviceID int64) (*models.DaemonInfo, error)
	// DeleteDevice removes the daemon on the server, its tunnel and its key.
	DeleteDevice(ctx context.Context, deviceID int64) error
	// Wipe removes every installed tunnel and all local state. Devices are
	// not deleted on the server.
	Wipe(ctx context.Context) error
}

type deviceService struct {
	api       client.Client
	store     credentials.Store
	installer tunnel.Installer
	log       logging.Logger
	revoker   revoker
}

func NewDeviceService(api client.Client, store credentials.Store, signer Authorizer, installer tunnel.Installer, log logging.Logger, policy RetryPolicy) DeviceService {
	return &deviceService{
		api:       api,
		store:     store,
		installer: installer,
		log:       log,
		revoker:   revoker{api: api, signer: signer, policy: policy},
	}
}

func (d *deviceService) Devices(ctx context.Context) ([]models.DeviceKeyPair, error) {
	return d.store.DeviceKeyPairs(ctx)
}

func (d *deviceService) keyPair(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error) {
	kp, err := d.store.DeviceKeyPairByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", deviceID, err)
	}
	return kp, nil
}

func (d *deviceService) DeviceStatus(ctx context.Context, deviceID int64) (*models.DaemonInfo, error) {
	kp, err := d.keyPair(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	authz, err := d.revoker.signer.Authorize(kp.SigningPrivateKey)
	if err != nil {
		return nil, err
	}
	return d.api.GetDaemonInfo(ctx, kp.CompanyName, kp.DeviceID, authz)
}

func (d *deviceService) DeleteDevice(ctx context.Context, deviceID int64) error {
	kp, err := d.keyPair(ctx, deviceID)
	if err != nil {
		return err
	}
	log := d.log.With("device_id", deviceID, "company", kp.CompanyName)

	if err := d.revoker.deleteRemote(ctx, *kp); err != nil {
		log.Warn(ctx, "server-side device deletion failed", "error", err)
		return fmt.Errorf("deleting device %d: %w", deviceID, err)
	}
	if err := d.installer.Remove(ctx, wgconfig.TunnelName(kp.CompanyName, kp.DeviceID)); err != nil {
		return fmt.Errorf("removing tunnel: %w", err)
	}
	if err := d.store.DeleteDeviceKeyPair(ctx, deviceID); err != nil {
		return fmt.Errorf("purging device key: %w", err)
	}
	log.Info(ctx, "device deleted")
	return nil
}

func (d *deviceService) Wipe(ctx context.Context) error {
	kps, err := d.store.DeviceKeyPairs(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, kp := range kps {
		if err := d.installer.Remove(ctx, wgconfig.TunnelName(kp.CompanyName, kp.DeviceID)); err != nil {
			errs = append(errs, fmt.Errorf("removing tunnel for device %d: %w", kp.DeviceID, err))
		}
	}
	if err := d.store.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing store: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	d.log.Info(ctx, "local state wiped", "devices", len(kps))
	return nil
}
