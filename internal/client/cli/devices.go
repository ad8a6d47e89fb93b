package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/services"
	"github.com/dmitrijs2005/wgdaemon/internal/client/wgconfig"
)

func parseDeviceID(cmd string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s <device-id>", ErrUsage, cmd)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s <device-id>: %q is not a device id", ErrUsage, cmd, args[0])
	}
	return id, nil
}

func (a *App) requireUser() (*models.User, error) {
	if a.user == nil {
		return nil, services.ErrNotSignedIn
	}
	return a.user, nil
}

// Register provisions a new daemon for the signed-in user and installs its
// tunnel.
func (a *App) Register(ctx context.Context, args []string) error {
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: register <device-name>", ErrUsage)
	}

	res, err := a.provisioner.Provision(ctx, *u, args[0])
	if err != nil {
		var ce *services.CompensationError
		if errors.As(err, &ce) {
			if ce.KeyRetained {
				fmt.Fprintf(a.out, "Device %d may still exist on the server; run 'delete %d' to remove it\n", ce.DeviceID, ce.DeviceID)
			} else {
				fmt.Fprintf(a.out, "Device %d may still exist on the server; ask an administrator to remove it\n", ce.DeviceID)
			}
		}
		return err
	}

	fmt.Fprintf(a.out, "Registered %s as device %d\n", res.Device.DeviceName, res.Device.DeviceID)
	fmt.Fprintf(a.out, "Tunnel %s installed, address %s\n", res.TunnelName, res.IPAddress)
	return nil
}

// Devices lists the daemons whose keys are stored locally.
func (a *App) Devices(ctx context.Context) error {
	kps, err := a.devices.Devices(ctx)
	if err != nil {
		return err
	}
	if len(kps) == 0 {
		fmt.Fprintln(a.out, "No devices")
		return nil
	}
	var b strings.Builder
	for _, kp := range kps {
		fmt.Fprintf(&b, "%d\t%s\t%s\t%s\n", kp.DeviceID, kp.DeviceName, kp.CompanyName,
			wgconfig.TunnelName(kp.CompanyName, kp.DeviceID))
	}
	fmt.Fprint(a.out, b.String())
	return nil
}

// Approval shows whether an administrator approved the daemon.
func (a *App) Approval(ctx context.Context, args []string) error {
	id, err := parseDeviceID("approval", args)
	if err != nil {
		return err
	}
	info, err := a.devices.DeviceStatus(ctx, id)
	if err != nil {
		return err
	}
	state := "pending"
	if info.Approved {
		state = "approved"
	}
	fmt.Fprintf(a.out, "%d\t%s\t%s\n", info.ID, info.Name, state)
	return nil
}

// Refresh rewrites the peer section of an installed tunnel with the network
// peer the backend currently reports.
func (a *App) Refresh(ctx context.Context, args []string) error {
	id, err := parseDeviceID("refresh", args)
	if err != nil {
		return err
	}
	kps, err := a.devices.Devices(ctx)
	if err != nil {
		return err
	}
	var name string
	for _, kp := range kps {
		if kp.DeviceID == id {
			name = wgconfig.TunnelName(kp.CompanyName, kp.DeviceID)
		}
	}
	if name == "" {
		return fmt.Errorf("device %d is not known locally", id)
	}

	current, err := a.tunnels.Read(name)
	if err != nil {
		return err
	}
	updated, err := a.provisioner.RefreshPeer(ctx, id, current)
	if err != nil {
		return err
	}
	if updated == current {
		fmt.Fprintf(a.out, "Tunnel %s is up to date\n", name)
		return nil
	}
	if err := a.tunnels.Replace(ctx, name, updated); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tunnel %s updated\n", name)
	return nil
}

// Delete removes the daemon on the server, its tunnel and its local key.
func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := parseDeviceID("delete", args)
	if err != nil {
		return err
	}
	if err := a.devices.DeleteDevice(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %d deleted\n", id)
	return nil
}

// Wipe removes every tunnel and all local state after confirmation. Devices
// stay registered on the server.
func (a *App) Wipe(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "This removes all tunnels, device keys and the session. Type 'yes' to continue", a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		fmt.Fprintln(a.out, "Aborted")
		return nil
	}
	if err := a.devices.Wipe(ctx); err != nil {
		return err
	}
	a.user = nil
	fmt.Fprintln(a.out, "Local state wiped")
	return nil
}
