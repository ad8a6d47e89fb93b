package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/client"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/sethvargo/go-retry"
)

// Authorizer builds signed device authorizations.
type Authorizer interface {
	Authorize(privateKey []byte) (string, error)
}

// RetryPolicy bounds server-side device deletion during compensation and
// explicit revocation.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// Timeout caps the whole deletion, which runs detached from the
	// caller's context.
	Timeout time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond, Timeout: 30 * time.Second}

func (p RetryPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultRetryPolicy.Timeout
	}
	return p.Timeout
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts, delay := p.Attempts, p.Delay
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
}

// revoker deletes a daemon on the server with a fresh signature per attempt.
type revoker struct {
	api    client.Client
	signer Authorizer
	policy RetryPolicy
}

func (r revoker) deleteRemote(ctx context.Context, kp models.DeviceKeyPair) error {
	return retry.Do(ctx, r.policy.backoff(), func(ctx context.Context) error {
		authz, err := r.signer.Authorize(kp.SigningPrivateKey)
		if err != nil {
			return err
		}
		err = r.api.DeleteDaemon(ctx, kp.CompanyName, kp.DeviceID, authz)
		if err == nil {
			return nil
		}

		var rej *client.ServerRejection
		switch {
		case errors.As(err, &rej) && rej.StatusCode == http.StatusNotFound:
			// already gone
			return nil
		case errors.Is(err, client.ErrUnavailable),
			errors.As(err, &rej) && rej.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(err)
		default:
			return err
		}
	})
}
