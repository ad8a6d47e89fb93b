// Package signer produces the signed Authorization value that identifies a
// device to endpoints which do not accept bearer tokens.
package signer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
)

// ErrSigning is returned when the device key cannot produce a signature.
// It is not retryable.
var ErrSigning = errors.New("signing failed")

// Authorizer signs the current unix time with a device key.
type Authorizer struct {
	now func() time.Time
}

type Option func(*Authorizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) { a.now = now }
}

func New(opts ...Option) *Authorizer {
	a := &Authorizer{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Authorize returns base64(signature || timestamp) where timestamp is the
// current unix time in seconds, 8 bytes little-endian. A fresh value is
// built on every call.
func (a *Authorizer) Authorize(privateKey []byte) (string, error) {
	msg := make([]byte, 8)
	binary.LittleEndian.PutUint64(msg, uint64(a.now().Unix()))

	v, err := cryptox.BuildSignedAuthorization(msg, privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return v, nil
}
