package services

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/backendtest"
	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/signer"
	"github.com/dmitrijs2005/wgdaemon/internal/client/tunnel"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.User{ID: 7, Email: "alice@acme.io", CompanyName: "Acme"}
	bob   = models.User{ID: 8, Email: "bob@acme.io", CompanyName: "Acme"}
)

var testPolicy = RetryPolicy{Attempts: 3, Delay: time.Millisecond, Timeout: 5 * time.Second}

type env struct {
	backend   *backendtest.Server
	store     credentials.Store
	api       client.Client
	installer *tunnel.FileInstaller
	auth      AuthService
	devices   DeviceService
	prov      *Provisioner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	be := backendtest.New()
	t.Cleanup(be.Close)
	be.AddUser(alice, "idtok-1")
	be.AddUser(bob, "idtok-2")

	store := credentials.NewMemoryStore()
	gw, err := client.NewGateway(be.BaseURL(), store, client.WithRequestTimeout(5*time.Second))
	require.NoError(t, err)
	api := client.NewHTTPClient(gw)

	in, err := tunnel.NewFileInstaller(t.TempDir())
	require.NoError(t, err)

	sg := signer.New()
	return &env{
		backend:   be,
		store:     store,
		api:       api,
		installer: in,
		auth:      NewAuthService(api, store, logging.Nop()),
		devices:   NewDeviceService(api, store, sg, in, logging.Nop(), testPolicy),
		prov:      NewProvisioner(api, store, sg, in, WithRetryPolicy(testPolicy)),
	}
}

func (e *env) signIn(t *testing.T, idToken string) models.User {
	t.Helper()
	u, err := e.auth.SignIn(context.Background(), models.AuthProviderGoogle, idToken)
	require.NoError(t, err)
	return *u
}

// clientMock is a testify mock of client.Client for paths the fake backend
// cannot produce.
type clientMock struct {
	mock.Mock
}

func (m *clientMock) AuthenticateUser(ctx context.Context, provider models.AuthProvider, idToken string) (*models.AuthResult, error) {
	args := m.Called(ctx, provider, idToken)
	r, _ := args.Get(0).(*models.AuthResult)
	return r, args.Error(1)
}

func (m *clientMock) SendVerificationCode(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *clientMock) VerifyEmailCode(ctx context.Context, email string, code int) (*models.AuthResult, error) {
	args := m.Called(ctx, email, code)
	r, _ := args.Get(0).(*models.AuthResult)
	return r, args.Error(1)
}

func (m *clientMock) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *clientMock) CreateDaemon(ctx context.Context, company string, userID int64, publicKey ed25519.PublicKey, name string) (*models.Daemon, error) {
	args := m.Called(ctx, company, userID, publicKey, name)
	r, _ := args.Get(0).(*models.Daemon)
	return r, args.Error(1)
}

func (m *clientMock) DeleteDaemon(ctx context.Context, company string, deviceID int64, authorization string) error {
	return m.Called(ctx, company, deviceID, authorization).Error(0)
}

func (m *clientMock) GetNetworkPeer(ctx context.Context, company string, deviceID int64, authorization string) (*models.NetworkPeer, error) {
	args := m.Called(ctx, company, deviceID, authorization)
	r, _ := args.Get(0).(*models.NetworkPeer)
	return r, args.Error(1)
}

func (m *clientMock) GetDaemonInfo(ctx context.Context, company string, deviceID int64, authorization string) (*models.DaemonInfo, error) {
	args := m.Called(ctx, company, deviceID, authorization)
	r, _ := args.Get(0).(*models.DaemonInfo)
	return r, args.Error(1)
}

type installerMock struct {
	mock.Mock
}

func (m *installerMock) Install(ctx context.Context, name, config string) error {
	return m.Called(ctx, name, config).Error(0)
}

func (m *installerMock) Remove(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

var (
	_ client.Client    = (*clientMock)(nil)
	_ tunnel.Installer = (*installerMock)(nil)
)
