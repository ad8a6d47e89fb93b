package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
)

// RefreshPath is the token refresh endpoint. Calls to it are never
// intercepted.
const RefreshPath = "auth/refresh"

// awaitRefresh joins the in-flight refresh, starting one if none is running.
// sentWith is the access token the rejected call carried; if the store holds
// a different one by the time the flight runs, a refresh already landed and
// no request is made.
//
// The flight itself runs detached from ctx so that one caller giving up does
// not fail the others; ctx only bounds how long this caller waits.
func (g *Gateway) awaitRefresh(ctx context.Context, sentWith string) error {
	ch := g.flight.DoChan(RefreshPath, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.refreshTimeout)
		defer cancel()
		return nil, g.refresh(fctx, sentWith)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (g *Gateway) refresh(ctx context.Context, sentWith string) error {
	current, err := g.tokens.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading tokens: %w", ErrUnauthorized, err)
	}
	if current.AccessToken != "" && current.AccessToken != sentWith {
		g.log.Debug(ctx, "token already refreshed by another call")
		return nil
	}
	if current.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token", ErrUnauthorized)
	}

	g.log.Debug(ctx, "refreshing access token")
	call := Call{
		Method:  http.MethodGet,
		Path:    RefreshPath,
		Auth:    AuthNone,
		cookies: []*http.Cookie{{Name: common.RefreshTokenCookieName, Value: current.RefreshToken}},
	}
	var out refreshResponse
	cookies, err := g.DoWithCookies(ctx, call, &out)
	if err != nil {
		g.log.Warn(ctx, "token refresh failed", "error", err)
		return fmt.Errorf("%w: token refresh failed: %w", ErrUnauthorized, err)
	}

	next := TokensFromResponse(cookies, out.AccessToken, out.RefreshToken)
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if next.AccessToken == "" {
		return fmt.Errorf("%w: refresh returned no access token", ErrUnauthorized)
	}
	if err := g.tokens.SaveTokens(ctx, next); err != nil {
		return fmt.Errorf("%w: saving refreshed tokens: %w", ErrUnauthorized, err)
	}
	g.log.Info(ctx, "access token refreshed")
	return nil
}

// TokensFromResponse picks the token pair out of response cookies, falling
// back to the JSON body fields.
func TokensFromResponse(cookies []*http.Cookie, access, refresh string) models.Tokens {
	t := models.Tokens{AccessToken: access, RefreshToken: refresh}
	for _, c := range cookies {
		switch c.Name {
		case common.AccessTokenCookieName:
			if c.Value != "" {
				t.AccessToken = c.Value
			}
		case common.RefreshTokenCookieName:
			if c.Value != "" {
				t.RefreshToken = c.Value
			}
		}
	}
	return t
}
