package services

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/tunnel"
	"github.com/dmitrijs2005/wgdaemon/internal/client/wgconfig"
	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
)

// Provisioned is a successfully registered and installed daemon.
type Provisioned struct {
	Device     models.DeviceKeyPair
	IPAddress  string
	TunnelName string
	Config     string
}

// Provisioner registers a new daemon for a user and installs its tunnel.
//
// Registration is not idempotent, so Provision never retries it. Any failure
// after registration, including cancellation of ctx, deletes the daemon on the
// server and purges its local key before the error is returned.
type Provisioner struct {
	api       client.Client
	store     credentials.Store
	installer tunnel.Installer
	log       logging.Logger
	revoker   revoker
}

type ProvisionerOption func(*Provisioner)

func WithProvisionerLogger(l logging.Logger) ProvisionerOption {
	return func(p *Provisioner) { p.log = l }
}

func WithRetryPolicy(rp RetryPolicy) ProvisionerOption {
	return func(p *Provisioner) { p.revoker.policy = rp }
}

func NewProvisioner(api client.Client, store credentials.Store, signer Authorizer, installer tunnel.Installer, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		api:       api,
		store:     store,
		installer: installer,
		log:       logging.Nop(),
		revoker:   revoker{api: api, signer: signer, policy: DefaultRetryPolicy},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provisioner) Provision(ctx context.Context, user models.User, deviceName string) (*Provisioned, error) {
	if err := models.ValidateDeviceName(deviceName); err != nil {
		return nil, &StepError{Step: StepValidate, Err: err}
	}
	log := p.log.With("user_id", user.ID, "company", user.CompanyName, "device_name", deviceName)

	// the store keeps one key per user, so a new device evicts this one
	prev, err := p.store.DeviceKeyPairByUserID(ctx, user.ID)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		prev = nil
	case err != nil:
		return nil, &StepError{Step: StepLoadKeys, Err: err}
	}

	pub, priv := cryptox.GenerateSigningKeyPair()

	if err := ctx.Err(); err != nil {
		return nil, &StepError{Step: StepRegister, Err: err}
	}
	daemon, err := p.api.CreateDaemon(ctx, user.CompanyName, user.ID, pub, deviceName)
	if err != nil {
		log.Warn(ctx, "device registration failed", "error", err)
		return nil, &StepError{Step: StepRegister, Err: err}
	}
	log = log.With("device_id", daemon.ID)
	log.Info(ctx, "device registered", "ip", daemon.IPAddress)

	kp := models.DeviceKeyPair{
		DeviceName:        deviceName,
		DeviceID:          daemon.ID,
		UserID:            user.ID,
		CompanyName:       user.CompanyName,
		SigningPublicKey:  pub,
		SigningPrivateKey: priv,
	}

	res, err := p.completeRegistration(ctx, kp, daemon)
	if err != nil {
		return nil, p.compensate(ctx, log, kp, prev, err)
	}
	log.Info(ctx, "device provisioned", "tunnel", res.TunnelName)
	return res, nil
}

// completeRegistration runs every step after the daemon exists server-side.
// Its errors are already wrapped in a StepError.
func (p *Provisioner) completeRegistration(ctx context.Context, kp models.DeviceKeyPair, daemon *models.Daemon) (*Provisioned, error) {
	step := func(s Step) error {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: s, Err: err}
		}
		return nil
	}

	if err := step(StepDeriveKeys); err != nil {
		return nil, err
	}
	pair, err := kp.KeyAgreement()
	if err != nil {
		return nil, &StepError{Step: StepDeriveKeys, Err: err}
	}

	if err := step(StepFetchPeer); err != nil {
		return nil, err
	}
	peer, peerKey, err := p.fetchPeer(ctx, kp)
	if err != nil {
		return nil, err
	}

	if err := step(StepPersist); err != nil {
		return nil, err
	}
	if err := p.store.SaveDeviceKeyPair(ctx, kp); err != nil {
		return nil, &StepError{Step: StepPersist, Err: err}
	}

	text := wgconfig.Render(wgconfig.Config{
		CompanyName:   kp.CompanyName,
		PrivateKey:    pair.PrivateKey.String(),
		Address:       daemon.IPAddress,
		DNS:           peer.IPAddress,
		PeerPublicKey: peerKey,
		AllowedIPs:    peer.AllowedIPs,
		Endpoint:      peer.EndpointAddress,
	})
	name := wgconfig.TunnelName(kp.CompanyName, kp.DeviceID)

	if err := step(StepInstall); err != nil {
		return nil, err
	}
	if err := p.installer.Install(ctx, name, text); err != nil {
		return nil, &StepError{Step: StepInstall, Err: err}
	}

	return &Provisioned{Device: kp, IPAddress: daemon.IPAddress, TunnelName: name, Config: text}, nil
}

// fetchPeer performs the signed peer lookup and converts the router key.
func (p *Provisioner) fetchPeer(ctx context.Context, kp models.DeviceKeyPair) (*models.NetworkPeer, string, error) {
	authz, err := p.revoker.signer.Authorize(kp.SigningPrivateKey)
	if err != nil {
		return nil, "", &StepError{Step: StepFetchPeer, Err: err}
	}
	peer, err := p.api.GetNetworkPeer(ctx, kp.CompanyName, kp.DeviceID, authz)
	if err != nil {
		return nil, "", &StepError{Step: StepFetchPeer, Err: err}
	}

	raw, err := cryptox.DecodeKey(peer.RouterPublicKey, ed25519.PublicKeySize)
	if err != nil {
		return nil, "", &StepError{Step: StepConvertPeerKey, Err: fmt.Errorf("%w: router key: %w", cryptox.ErrConversion, err)}
	}
	key, err := cryptox.SigningPublicKeyToKeyAgreement(raw)
	if err != nil {
		return nil, "", &StepError{Step: StepConvertPeerKey, Err: err}
	}
	return peer, key.String(), nil
}

// compensate undoes a registration whose follow-up steps failed. It runs on
// a context detached from ctx so that cancellation still cleans up. prev is
// the user's key pair from before the run and is put back in every outcome
// where it existed; only without one is the orphan's key kept for revocation.
func (p *Provisioner) compensate(ctx context.Context, log logging.Logger, kp models.DeviceKeyPair, prev *models.DeviceKeyPair, cause error) error {
	log.Warn(ctx, "provisioning failed after registration, deleting device", "error", cause)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.revoker.policy.timeout())
	defer cancel()

	if err := p.revoker.deleteRemote(cctx, kp); err != nil {
		if prev != nil {
			log.Error(ctx, "device deletion failed, previous device key restored", "error", err, "previous_device_id", prev.DeviceID)
			if serr := p.store.SaveDeviceKeyPair(cctx, *prev); serr != nil {
				err = errors.Join(err, fmt.Errorf("restoring key of device %d: %w", prev.DeviceID, serr))
			}
			return &CompensationError{DeviceID: kp.DeviceID, Cause: cause, DeleteErr: err}
		}
		log.Error(ctx, "device deletion failed, keeping key for later revocation", "error", err)
		if serr := p.store.SaveDeviceKeyPair(cctx, kp); serr != nil {
			err = errors.Join(err, fmt.Errorf("keeping device key: %w", serr))
		}
		return &CompensationError{DeviceID: kp.DeviceID, Cause: cause, DeleteErr: err, KeyRetained: true}
	}

	if err := p.store.DeleteDeviceKeyPair(cctx, kp.DeviceID); err != nil {
		log.Error(ctx, "purging local device key failed", "error", err)
		return errors.Join(cause, fmt.Errorf("purging local device key: %w", err))
	}
	if prev != nil {
		if err := p.store.SaveDeviceKeyPair(cctx, *prev); err != nil {
			log.Error(ctx, "restoring previous device key failed", "error", err, "previous_device_id", prev.DeviceID)
			return errors.Join(cause, fmt.Errorf("restoring key of device %d: %w", prev.DeviceID, err))
		}
	}
	log.Info(ctx, "device deleted after failed provisioning")
	return cause
}

// RefreshPeer re-fetches the network peer of an installed daemon and
// rewrites the peer-dependent lines of its configuration.
func (p *Provisioner) RefreshPeer(ctx context.Context, deviceID int64, currentConfig string) (string, error) {
	kp, err := p.store.DeviceKeyPairByDeviceID(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("device %d: %w", deviceID, err)
	}
	peer, peerKey, err := p.fetchPeer(ctx, *kp)
	if err != nil {
		return "", err
	}
	return wgconfig.UpdatePeer(currentConfig, wgconfig.PeerUpdate{
		PeerPublicKey: peerKey,
		AllowedIPs:    peer.AllowedIPs,
		DNS:           peer.IPAddress,
		Endpoint:      peer.EndpointAddress,
	}), nil
}
