package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/config"
	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/services"
	"github.com/dmitrijs2005/wgdaemon/internal/client/signer"
	"github.com/dmitrijs2005/wgdaemon/internal/client/tunnel"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	devices     services.DeviceService
	provisioner *services.Provisioner
	tunnels     *tunnel.FileInstaller
	store       *credentials.SQLiteStore
	log         logging.Logger
	user        *models.User
	reader      *bufio.Reader
	out         io.Writer
}

// NewLogger builds the slog-backed logger the CLI uses. Debug lowers the level
// so redacted HTTP exchanges show up.
func NewLogger(w io.Writer, debug bool) logging.Logger {
	return logging.NewTextLogger(w, debug)
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, err := credentials.OpenSQLite(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	opts := []client.Option{
		client.WithLogger(log),
		client.WithRequestTimeout(c.RequestTimeout),
		client.WithRefreshTimeout(c.RefreshTimeout),
	}
	if c.Debug {
		opts = append(opts, client.WithSink(client.NewLogSink(log)))
	}
	gw, err := client.NewGateway(c.BackendURL, store, opts...)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	api := client.NewHTTPClient(gw)

	tunnels, err := tunnel.NewFileInstaller(c.TunnelDir)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("tunnel directory: %w", err), store.Close())
	}

	sg := signer.New()
	policy := services.RetryPolicy{
		Attempts: c.CompensationAttempts,
		Delay:    c.CompensationDelay,
		Timeout:  c.CompensationTimeout,
	}

	return &App{
		config:      c,
		authService: services.NewAuthService(api, store, log),
		devices:     services.NewDeviceService(api, store, sg, tunnels, log, policy),
		provisioner: services.NewProvisioner(api, store, sg, tunnels,
			services.WithProvisionerLogger(log), services.WithRetryPolicy(policy)),
		tunnels: tunnels,
		store:   store,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn(ctx, "closing database", "error", err)
		}
	}()
	a.Root(ctx)
}

func (a *App) isSignedIn() bool {
	return a.user != nil
}

// loadUser restores the session persisted by an earlier run.
func (a *App) loadUser(ctx context.Context) {
	u, err := a.authService.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, services.ErrNotSignedIn) {
			a.log.Warn(ctx, "reading session", "error", err)
		}
		a.user = nil
		return
	}
	a.user = u
}
