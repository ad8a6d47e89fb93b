// Package services contains the application services of the wgdaemon client.
// This file defines the account service: identity-token and e-mail code
// sign-in, sign-out, and lookup of the signed-in user.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
)

// AuthService defines the account operations of the CLI.
//
// Contract:
//   - SignIn: exchange an identity-provider token for a session.
//   - SendVerificationCode / VerifyEmail: the e-mail code alternative.
//   - SignOut: end the session; device keys are kept.
//   - CurrentUser: the signed-in user or ErrNotSignedIn.
type AuthService interface {
	SignIn(ctx context.Context, provider models.AuthProvider, idToken string) (*models.User, error)
	SendVerificationCode(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email string, code int) (*models.User, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
}

type authService struct {
	api   client.Client
	store credentials.Store
	log   logging.Logger
}

func NewAuthService(api client.Client, store credentials.Store, log logging.Logger) AuthService {
	return &authService{api: api, store: store, log: log}
}

func (a *authService) SignIn(ctx context.Context, provider models.AuthProvider, idToken string) (*models.User, error) {
	res, err := a.api.AuthenticateUser(ctx, provider, idToken)
	if err != nil {
		return nil, err
	}
	return a.saveLogin(ctx, res)
}

func (a *authService) SendVerificationCode(ctx context.Context, email string) error {
	return a.api.SendVerificationCode(ctx, email)
}

func (a *authService) VerifyEmail(ctx context.Context, email string, code int) (*models.User, error) {
	res, err := a.api.VerifyEmailCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return a.saveLogin(ctx, res)
}

func (a *authService) saveLogin(ctx context.Context, res *models.AuthResult) (*models.User, error) {
	if err := a.store.SaveLogin(ctx, *res); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	a.log.Info(ctx, "signed in", "user_id", res.User.ID, "company", res.User.CompanyName)
	u := res.User
	return &u, nil
}

// SignOut tells the backend and then forgets the session locally. The local
// part happens even when the backend cannot be reached; the tokens are
// discarded either way.
func (a *authService) SignOut(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		a.log.Warn(ctx, "backend logout failed, clearing local session anyway", "error", err)
	}
	if err := a.store.ClearLogin(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	a.log.Info(ctx, "signed out")
	return nil
}

func (a *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	u, err := a.store.CurrentUser(ctx)
	if errors.Is(err, credentials.ErrNoSession) {
		return nil, ErrNotSignedIn
	}
	return u, err
}
