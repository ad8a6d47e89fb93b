package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidDeviceName is returned by ValidateDeviceName.
var ErrInvalidDeviceName = errors.New("invalid device name")

// Daemon is a registered device as returned by the backend.
type Daemon struct {
	ID        int64
	Name      string
	IPAddress string
}

// DaemonInfo reports the approval state of a registered device.
type DaemonInfo struct {
	ID       int64
	Name     string
	Approved bool
}

// NetworkPeer describes the network controller a daemon connects to.
// RouterPublicKey is in the signing (Ed25519) domain and must be converted
// before it goes into a tunnel configuration.
type NetworkPeer struct {
	RouterPublicKey string
	IPAddress       string
	EndpointAddress string
	AllowedIPs      string
}

// ValidateDeviceName applies the backend's hostname rules: letters, digits
// and at most one hyphen, 2 to 63 characters, not starting with a hyphen or
// a digit.
func ValidateDeviceName(name string) error {
	if len(name) < 2 || len(name) > 63 {
		return fmt.Errorf("%w: length must be between 2 and 63 characters", ErrInvalidDeviceName)
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			return fmt.Errorf("%w: only letters, digits and hyphens are allowed", ErrInvalidDeviceName)
		}
	}
	if strings.Count(name, "-") > 1 {
		return fmt.Errorf("%w: at most one hyphen is allowed", ErrInvalidDeviceName)
	}
	if name[0] == '-' {
		return fmt.Errorf("%w: may not start with a hyphen", ErrInvalidDeviceName)
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("%w: may not start with a digit", ErrInvalidDeviceName)
	}
	return nil
}
