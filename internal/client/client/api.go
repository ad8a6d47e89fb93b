package client

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
)

// HTTPClient implements Client over a Gateway.
type HTTPClient struct {
	gw *Gateway
}

func NewHTTPClient(gw *Gateway) *HTTPClient {
	return &HTTPClient{gw: gw}
}

var _ Client = (*HTTPClient)(nil)

type userAuthResponse struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (r userAuthResponse) result(cookies []*http.Cookie) (*models.AuthResult, error) {
	tokens := TokensFromResponse(cookies, r.AccessToken, r.RefreshToken)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: authentication response carried no token pair", ErrUnauthorized)
	}
	return &models.AuthResult{
		User:   models.User{ID: r.ID, Email: r.Email, CompanyName: r.Company.Name},
		Tokens: tokens,
	}, nil
}

func (c *HTTPClient) AuthenticateUser(ctx context.Context, provider models.AuthProvider, idToken string) (*models.AuthResult, error) {
	call := Call{
		Method: http.MethodPost,
		Path:   "auth/verify-" + string(provider) + "-id",
		Body:   map[string]string{"idToken": idToken},
		Auth:   AuthNone,
	}
	var out userAuthResponse
	cookies, err := c.gw.DoWithCookies(ctx, call, &out)
	if err != nil {
		return nil, err
	}
	return out.result(cookies)
}

func (c *HTTPClient) SendVerificationCode(ctx context.Context, email string) error {
	return c.gw.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "auth/send-user-token-code",
		Body:   map[string]string{"email": email},
		Auth:   AuthNone,
	}, nil)
}

func (c *HTTPClient) VerifyEmailCode(ctx context.Context, email string, code int) (*models.AuthResult, error) {
	call := Call{
		Method: http.MethodPost,
		Path:   "auth/verify-email-token",
		Body: struct {
			Email string `json:"email"`
			Token int    `json:"token"`
		}{email, code},
		Auth: AuthNone,
	}
	var out userAuthResponse
	cookies, err := c.gw.DoWithCookies(ctx, call, &out)
	if err != nil {
		return nil, err
	}
	return out.result(cookies)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.gw.Do(ctx, Call{Method: http.MethodPost, Path: "auth/logout"}, nil)
}

func (c *HTTPClient) CreateDaemon(ctx context.Context, company string, userID int64, publicKey ed25519.PublicKey, name string) (*models.Daemon, error) {
	var out struct {
		ID        int64  `json:"id"`
		IPAddress string `json:"ipAddress"`
		Name      string `json:"name"`
	}
	err := c.gw.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("companies/%s/daemons/user/%d", url.PathEscape(company), userID),
		Body: map[string]string{
			"publicKey": cryptox.EncodeKey(publicKey),
			"name":      name,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.Daemon{ID: out.ID, Name: out.Name, IPAddress: out.IPAddress}, nil
}

func daemonPath(company string, deviceID int64) string {
	return "companies/" + url.PathEscape(company) + "/daemons-mobile/" + strconv.FormatInt(deviceID, 10)
}

func (c *HTTPClient) DeleteDaemon(ctx context.Context, company string, deviceID int64, authorization string) error {
	var out struct {
		ID int64 `json:"id"`
	}
	return c.gw.Do(ctx, Call{
		Method: http.MethodDelete,
		Path:   daemonPath(company, deviceID),
		Auth:   AuthSigned(authorization),
	}, &out)
}

func (c *HTTPClient) GetNetworkPeer(ctx context.Context, company string, deviceID int64, authorization string) (*models.NetworkPeer, error) {
	var out struct {
		RouterPublicKey string `json:"routerPublicKey"`
		IPAddress       string `json:"ipAddress"`
		EndpointAddress string `json:"endpointAddress"`
		AllowedIPs      string `json:"allowedIps"`
	}
	err := c.gw.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   daemonPath(company, deviceID) + "/nc-information",
		Auth:   AuthSigned(authorization),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.NetworkPeer{
		RouterPublicKey: out.RouterPublicKey,
		IPAddress:       out.IPAddress,
		EndpointAddress: out.EndpointAddress,
		AllowedIPs:      out.AllowedIPs,
	}, nil
}

func (c *HTTPClient) GetDaemonInfo(ctx context.Context, company string, deviceID int64, authorization string) (*models.DaemonInfo, error) {
	var out struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		ApprovalStatus string `json:"approvalStatus"`
	}
	err := c.gw.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   daemonPath(company, deviceID),
		Auth:   AuthSigned(authorization),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.DaemonInfo{ID: out.ID, Name: out.Name, Approved: out.ApprovalStatus == "approved"}, nil
}
