package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
)

// ErrUsage is returned when a command is called with the wrong arguments.
var ErrUsage = errors.New("usage")

// getSimpleText and getSecret are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// SignIn exchanges an identity-provider token for a session.
// The token is read without echo.
func (a *App) SignIn(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: signin <google|microsoft>", ErrUsage)
	}
	provider, err := models.ParseAuthProvider(args[0])
	if err != nil {
		return err
	}

	idToken, err := getSecret(a.out, "Paste the "+string(provider)+" identity token")
	if err != nil {
		return err
	}
	if idToken == "" {
		return errors.New("identity token is empty")
	}

	u, err := a.authService.SignIn(ctx, provider, idToken)
	if err != nil {
		return err
	}
	a.user = u
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", u.Email, u.CompanyName)
	return nil
}

// EmailSignIn mails a verification code to the address and asks for it.
func (a *App) EmailSignIn(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: email <address>", ErrUsage)
	}
	email := args[0]

	if err := a.authService.SendVerificationCode(ctx, email); err != nil {
		return err
	}

	text, err := getSimpleText(a.reader, "Enter the code sent to "+email, a.out)
	if err != nil {
		return err
	}
	code, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("verification code must be a number: %w", err)
	}

	u, err := a.authService.VerifyEmail(ctx, email, code)
	if err != nil {
		return err
	}
	a.user = u
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", u.Email, u.CompanyName)
	return nil
}

// SignOut ends the session. Device keys and tunnels are kept.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.authService.SignOut(ctx); err != nil {
		return err
	}
	a.user = nil
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
