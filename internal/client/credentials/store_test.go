package credentials

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyPair(deviceID, userID int64) models.DeviceKeyPair {
	pub, priv := cryptox.GenerateSigningKeyPair()
	return models.DeviceKeyPair{
		DeviceName:        "laptop",
		DeviceID:          deviceID,
		UserID:            userID,
		CompanyName:       "Acme",
		SigningPublicKey:  pub,
		SigningPrivateKey: priv,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return map[string]Store{
		"sqlite": s,
		"memory": NewMemoryStore(),
	}
}

func TestStore_LoginLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.CurrentUser(ctx)
			assert.ErrorIs(t, err, ErrNoSession)
			tok, err := s.Tokens(ctx)
			require.NoError(t, err)
			assert.Empty(t, tok.AccessToken)

			res := models.AuthResult{
				User:   models.User{ID: 7, Email: "a@b.c", CompanyName: "Acme"},
				Tokens: models.Tokens{AccessToken: "A1", RefreshToken: "R1"},
			}
			require.NoError(t, s.SaveLogin(ctx, res))

			u, err := s.CurrentUser(ctx)
			require.NoError(t, err)
			assert.Equal(t, res.User, *u)
			tok, err = s.Tokens(ctx)
			require.NoError(t, err)
			assert.Equal(t, res.Tokens, tok)

			require.NoError(t, s.SaveTokens(ctx, models.Tokens{AccessToken: "A2", RefreshToken: "R2"}))
			tok, err = s.Tokens(ctx)
			require.NoError(t, err)
			assert.Equal(t, "A2", tok.AccessToken)
			assert.Equal(t, "R2", tok.RefreshToken)

			kp := keyPair(42, 7)
			require.NoError(t, s.SaveDeviceKeyPair(ctx, kp))

			require.NoError(t, s.ClearLogin(ctx))
			_, err = s.CurrentUser(ctx)
			assert.ErrorIs(t, err, ErrNoSession)
			tok, err = s.Tokens(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.Tokens{}, tok)

			// device keys survive sign-out
			got, err := s.DeviceKeyPairByDeviceID(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, kp, *got)
		})
	}
}

func TestStore_DeviceKeyEviction(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := keyPair(1, 100)
			other := keyPair(2, 200)
			require.NoError(t, s.SaveDeviceKeyPair(ctx, first))
			require.NoError(t, s.SaveDeviceKeyPair(ctx, other))

			// same user, new device: device 1 goes away
			replacement := keyPair(3, 100)
			require.NoError(t, s.SaveDeviceKeyPair(ctx, replacement))

			_, err := s.DeviceKeyPairByDeviceID(ctx, 1)
			assert.ErrorIs(t, err, ErrNotFound)
			got, err := s.DeviceKeyPairByUserID(ctx, 100)
			require.NoError(t, err)
			assert.Equal(t, int64(3), got.DeviceID)

			// same device, new user: user 200 loses its entry
			moved := keyPair(2, 300)
			require.NoError(t, s.SaveDeviceKeyPair(ctx, moved))
			_, err = s.DeviceKeyPairByUserID(ctx, 200)
			assert.ErrorIs(t, err, ErrNotFound)

			// an entry colliding on both keys removes both prior entries
			both := keyPair(3, 300)
			require.NoError(t, s.SaveDeviceKeyPair(ctx, both))

			all, err := s.DeviceKeyPairs(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, both, all[0])
		})
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.SaveDeviceKeyPair(ctx, keyPair(1, 10)))
			require.NoError(t, s.SaveDeviceKeyPair(ctx, keyPair(2, 20)))

			require.NoError(t, s.DeleteDeviceKeyPair(ctx, 1))
			require.NoError(t, s.DeleteDeviceKeyPair(ctx, 999))
			all, err := s.DeviceKeyPairs(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, int64(2), all[0].DeviceID)

			require.NoError(t, s.SaveLogin(ctx, models.AuthResult{
				User:   models.User{ID: 20, Email: "x@y.z", CompanyName: "Acme"},
				Tokens: models.Tokens{AccessToken: "A", RefreshToken: "R"},
			}))
			require.NoError(t, s.Clear(ctx))

			all, err = s.DeviceKeyPairs(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			_, err = s.CurrentUser(ctx)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := int64(1); i <= 20; i++ {
				wg.Add(1)
				go func(i int64) {
					defer wg.Done()
					assert.NoError(t, s.SaveDeviceKeyPair(ctx, keyPair(i, i)))
					assert.NoError(t, s.SaveTokens(ctx, models.Tokens{AccessToken: "A", RefreshToken: "R"}))
				}(i)
			}
			wg.Wait()

			all, err := s.DeviceKeyPairs(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 20)
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	kp := keyPair(5, 50)
	require.NoError(t, s.SaveDeviceKeyPair(ctx, kp))
	require.NoError(t, s.SaveLogin(ctx, models.AuthResult{
		User:   models.User{ID: 50, Email: "e@x.io", CompanyName: "Acme"},
		Tokens: models.Tokens{AccessToken: "A", RefreshToken: "R"},
	}))
	require.NoError(t, s.Close())

	// migrations are idempotent on reopen
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.DeviceKeyPairByUserID(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, kp, *got)

	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e@x.io", u.Email)
}

func TestAccessTokenExpiry(t *testing.T) {
	exp := time.Unix(1900000000, 0)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := AccessTokenExpiry(tok)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	got, err = AccessTokenExpiry(noExp)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = AccessTokenExpiry("not-a-jwt")
	assert.Error(t, err)
}
