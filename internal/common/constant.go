// Package common contains shared constants and sentinel errors used across
// the client packages.
package common

const (
	// AuthorizationHeaderName carries either "Bearer <token>" or a device
	// signed authorization value.
	AuthorizationHeaderName = "Authorization"
	// RequestIDHeaderName tags every outbound request for log correlation.
	RequestIDHeaderName = "X-Request-ID"

	// AccessTokenCookieName and RefreshTokenCookieName are the cookies the
	// backend uses to hand out the token pair.
	AccessTokenCookieName  = "Authentication"
	RefreshTokenCookieName = "Refresh"

	// WireGuardPort is the port the network controller listens on.
	WireGuardPort = 51820
)
