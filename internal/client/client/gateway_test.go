package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/credentials"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// tokenServer accepts "Bearer <valid>" on /api/v1/things and mints newToken
// on refresh. release gates the refresh handler when non-nil.
type tokenServer struct {
	mu           sync.Mutex
	valid        string
	newToken     string
	newRefresh   string
	refreshFails bool
	release      chan struct{}

	refreshes     atomic.Int32
	rejections    atomic.Int32
	calls         atomic.Int32
	lastRefreshCk atomic.String
}

func (s *tokenServer) handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/things", func(w http.ResponseWriter, req *http.Request) {
			s.calls.Inc()
			s.mu.Lock()
			valid := s.valid
			s.mu.Unlock()
			if req.Header.Get(common.AuthorizationHeaderName) != "Bearer "+valid {
				s.rejections.Inc()
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"token expired"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"value":"ok"}`))
		})
		r.Get("/auth/refresh", func(w http.ResponseWriter, req *http.Request) {
			s.refreshes.Inc()
			if ck, err := req.Cookie(common.RefreshTokenCookieName); err == nil {
				s.lastRefreshCk.Store(ck.Value)
			}
			if s.release != nil {
				<-s.release
			}
			if s.refreshFails {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"refresh token revoked"}`))
				return
			}
			s.mu.Lock()
			s.valid = s.newToken
			s.mu.Unlock()
			if s.newRefresh != "" {
				http.SetCookie(w, &http.Cookie{Name: common.RefreshTokenCookieName, Value: s.newRefresh})
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": s.newToken})
		})
	})
	return r
}

func newTestGateway(t *testing.T, h http.Handler, store TokenStore, opts ...Option) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := NewGateway(srv.URL+"/api/v1/", store, opts...)
	require.NoError(t, err)
	return gw
}

func seededStore(t *testing.T, access, refresh string) *credentials.MemoryStore {
	t.Helper()
	s := credentials.NewMemoryStore()
	require.NoError(t, s.SaveTokens(context.Background(), models.Tokens{AccessToken: access, RefreshToken: refresh}))
	return s
}

type thing struct {
	Value string `json:"value"`
}

func TestGateway_SingleRefreshPerBurst(t *testing.T) {
	for _, n := range []int{1, 2, 10} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			srv := &tokenServer{valid: "T1", newToken: "T1", newRefresh: "R1", release: make(chan struct{})}
			store := seededStore(t, "T0", "R0")
			gw := newTestGateway(t, srv.handler(), store)

			// let the refresh answer only after every call has been rejected
			go func() {
				deadline := time.Now().Add(5 * time.Second)
				for srv.rejections.Load() < int32(n) && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				close(srv.release)
			}()

			var wg sync.WaitGroup
			errs := make([]error, n)
			outs := make([]thing, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, &outs[i])
				}(i)
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				require.NoError(t, errs[i], "call %d", i)
				assert.Equal(t, "ok", outs[i].Value)
			}
			assert.Equal(t, int32(1), srv.refreshes.Load())
			assert.Equal(t, "R0", srv.lastRefreshCk.Load())
			assert.Equal(t, int32(2*n), srv.calls.Load())

			tok, err := store.Tokens(context.Background())
			require.NoError(t, err)
			assert.Equal(t, models.Tokens{AccessToken: "T1", RefreshToken: "R1"}, tok)
		})
	}
}

func TestGateway_RefreshFailureFailsAllWaiters(t *testing.T) {
	const n = 5
	srv := &tokenServer{valid: "never", refreshFails: true, release: make(chan struct{})}
	store := seededStore(t, "T0", "R0")
	gw := newTestGateway(t, srv.handler(), store)

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for srv.rejections.Load() < n && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(srv.release)
	}()

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Equal(t, int32(1), srv.refreshes.Load())
	assert.Equal(t, int32(n), srv.calls.Load(), "no call is retried after a failed refresh")

	tok, err := store.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Tokens{AccessToken: "T0", RefreshToken: "R0"}, tok)
}

func TestGateway_SecondRejectionIsTerminal(t *testing.T) {
	// refresh succeeds but the backend keeps refusing the new token
	srv := &tokenServer{valid: "something-else", newToken: "T1"}
	store := seededStore(t, "T0", "R0")
	gw := newTestGateway(t, srv.handler(), store)

	err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), srv.refreshes.Load())
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestGateway_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := &tokenServer{valid: "T1", newToken: "T1"}
	store := seededStore(t, "T0", "R0")
	gw := newTestGateway(t, srv.handler(), store)

	require.NoError(t, gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil))

	tok, err := store.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Tokens{AccessToken: "T1", RefreshToken: "R0"}, tok)
}

func TestGateway_NoRefreshTokenFailsWithoutRequest(t *testing.T) {
	srv := &tokenServer{valid: "T1", newToken: "T1"}
	gw := newTestGateway(t, srv.handler(), seededStore(t, "T0", ""))

	err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, srv.refreshes.Load())
}

func TestGateway_RefreshPathIsNotIntercepted(t *testing.T) {
	srv := &tokenServer{refreshFails: true}
	gw := newTestGateway(t, srv.handler(), seededStore(t, "T0", "R0"))

	err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: RefreshPath}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), srv.refreshes.Load())
}

func TestGateway_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	srv := &tokenServer{valid: "T1", newToken: "T1", release: make(chan struct{})}
	store := seededStore(t, "T0", "R0")
	gw := newTestGateway(t, srv.handler(), store)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		errA <- gw.Do(ctxA, Call{Method: http.MethodGet, Path: "things"}, nil)
	}()

	errB := make(chan error, 1)
	go func() {
		errB <- gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil)
	}()

	require.Eventually(t, func() bool { return srv.refreshes.Load() == 1 && srv.rejections.Load() == 2 },
		5*time.Second, time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(srv.release)
	assert.NoError(t, <-errB)
	assert.Equal(t, int32(1), srv.refreshes.Load())
}

func TestGateway_HeadersAndErrors(t *testing.T) {
	var gotAuth, gotReqID, gotBody atomic.String
	r := chi.NewRouter()
	r.Post("/signed", func(w http.ResponseWriter, req *http.Request) {
		gotAuth.Store(req.Header.Get(common.AuthorizationHeaderName))
		gotReqID.Store(req.Header.Get(common.RequestIDHeaderName))
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)
		gotBody.Store(body["name"])
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/conflict", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"statusCode":409,"message":"Daemon name already taken"}`))
	})
	r.Get("/validation", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":["name must be longer","name must be a string"]}`))
	})
	r.Get("/boom", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("gateway exploded\n"))
	})

	gw := newTestGateway(t, r, seededStore(t, "T0", "R0"))
	ctx := context.Background()

	err := gw.Do(ctx, Call{Method: http.MethodPost, Path: "signed", Body: map[string]string{"name": "laptop"}, Auth: AuthSigned("c2lnbmVk")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmVk", gotAuth.Load())
	assert.Len(t, gotReqID.Load(), 36)
	assert.Equal(t, "laptop", gotBody.Load())

	var rej *ServerRejection
	err = gw.Do(ctx, Call{Method: http.MethodGet, Path: "conflict"}, nil)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusConflict, rej.StatusCode)
	assert.Equal(t, "Daemon name already taken", rej.Message)

	err = gw.Do(ctx, Call{Method: http.MethodGet, Path: "validation"}, nil)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "name must be longer; name must be a string", rej.Message)

	err = gw.Do(ctx, Call{Method: http.MethodGet, Path: "boom"}, nil)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "gateway exploded", rej.Message)
}

func TestGateway_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	gw, err := NewGateway(base, seededStore(t, "T0", "R0"))
	require.NoError(t, err)

	err = gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "things"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGateway_PerAttemptTimeout(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/slow", func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	gw := newTestGateway(t, r, seededStore(t, "T0", "R0"), WithRequestTimeout(50*time.Millisecond))

	err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "slow"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = gw.Do(ctx, Call{Method: http.MethodGet, Path: "slow"}, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNewGateway_InvalidURL(t *testing.T) {
	_, err := NewGateway("not a url", credentials.NewMemoryStore())
	assert.Error(t, err)
	_, err = NewGateway("://", credentials.NewMemoryStore())
	assert.Error(t, err)
}
