// Package backendtest runs an in-process fake of the wgdaemon backend for
// tests. It issues real HS256 access/refresh tokens, verifies signed device
// authorizations and lets tests inject failures per operation.
package backendtest

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/atomic"
)

// Op names a backend operation for counting and failure injection.
type Op string

const (
	OpAuthenticate Op = "authenticate"
	OpSendCode     Op = "send-code"
	OpVerifyEmail  Op = "verify-email"
	OpRefresh      Op = "refresh"
	OpLogout       Op = "logout"
	OpCreateDaemon Op = "create-daemon"
	OpDeleteDaemon Op = "delete-daemon"
	OpNetworkPeer  Op = "network-peer"
	OpDaemonInfo   Op = "daemon-info"
)

var allOps = []Op{
	OpAuthenticate, OpSendCode, OpVerifyEmail, OpRefresh, OpLogout,
	OpCreateDaemon, OpDeleteDaemon, OpNetworkPeer, OpDaemonInfo,
}

const (
	BasePath = "/api/v1"

	// Default network peer. EndpointAddress carries no port.
	EndpointAddress = "vpn.example.net"
	ControllerIP    = "10.10.0.1"
	AllowedIPs      = "10.10.0.0/16"

	maxSignatureSkew = 5 * time.Minute
)

// Daemon is a device registered with the fake backend.
type Daemon struct {
	ID        int64
	Name      string
	Company   string
	UserID    int64
	PublicKey ed25519.PublicKey
	IPAddress string
	Approved  bool
}

type peerInfo struct {
	endpoint, controllerIP, allowedIPs string
}

type failure struct {
	status    int
	message   string
	remaining int // negative means forever
}

type account struct {
	user    models.User
	idToken string
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	secret    []byte
	tokenTTL  time.Duration
	routerPub ed25519.PublicKey

	mu         sync.Mutex
	now        func() time.Time
	accounts   []account
	codes      map[string]int
	daemons    map[int64]*Daemon
	nextID     int64
	nextIP     string
	peer       peerInfo
	generation int
	failures   map[Op]*failure
	hooks      map[Op]func(*http.Request)

	counts map[Op]*atomic.Int32
}

// New starts a fake backend. Close it with Server.Close.
func New() *Server {
	pub, _ := cryptox.GenerateSigningKeyPair()
	s := &Server{
		secret:    []byte("backendtest-secret"),
		tokenTTL:  15 * time.Minute,
		routerPub: pub,
		now:       time.Now,
		codes:     make(map[string]int),
		daemons:   make(map[int64]*Daemon),
		nextID:    100,
		peer:      peerInfo{EndpointAddress, ControllerIP, AllowedIPs},
		failures:  make(map[Op]*failure),
		hooks:     make(map[Op]func(*http.Request)),
		counts:    make(map[Op]*atomic.Int32, len(allOps)),
	}
	for _, op := range allOps {
		s.counts[op] = atomic.NewInt32(0)
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the value to configure the client with.
func (s *Server) BaseURL() string {
	return s.URL + BasePath + "/"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/verify-{provider}-id", s.op(OpAuthenticate, s.handleAuthenticate))
		r.Post("/auth/send-user-token-code", s.op(OpSendCode, s.handleSendCode))
		r.Post("/auth/verify-email-token", s.op(OpVerifyEmail, s.handleVerifyEmail))
		r.Get("/auth/refresh", s.op(OpRefresh, s.handleRefresh))
		r.Post("/auth/logout", s.op(OpLogout, s.bearer(s.handleLogout)))
		r.Post("/companies/{company}/daemons/user/{userID}", s.op(OpCreateDaemon, s.bearer(s.handleCreateDaemon)))
		r.Route("/companies/{company}/daemons-mobile/{daemonID}", func(r chi.Router) {
			r.Delete("/", s.op(OpDeleteDaemon, s.signed(s.handleDeleteDaemon)))
			r.Get("/", s.op(OpDaemonInfo, s.signed(s.handleDaemonInfo)))
			r.Get("/nc-information", s.op(OpNetworkPeer, s.signed(s.handleNetworkPeer)))
		})
	})
	return r
}

// Count reports how many requests reached op, including failed ones.
func (s *Server) Count(op Op) int32 {
	return s.counts[op].Load()
}

// Fail makes the next n requests to op answer status with message.
// n < 0 fails every request until Recover.
func (s *Server) Fail(op Op, n int, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{status: status, message: message, remaining: n}
}

func (s *Server) Recover(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

// OnRequest runs fn before op is handled, on the server goroutine.
func (s *Server) OnRequest(op Op, fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[op] = fn
}

// SetClock replaces the server's notion of now, for token expiry and
// signature skew checks.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers an account reachable through idToken or, for the e-mail
// flow, through its address.
func (s *Server) AddUser(u models.User, idToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, account{user: u, idToken: idToken})
}

// LastCode returns the verification code most recently sent to email.
func (s *Server) LastCode(email string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	return c, ok
}

// ExpireAccessTokens invalidates every access token issued so far, leaving
// refresh tokens valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// NextDaemon fixes the id and address the next registration receives.
func (s *Server) NextDaemon(id int64, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id - 1
	s.nextIP = ip
}

// SetNetworkPeer changes what the nc-information endpoint returns.
func (s *Server) SetNetworkPeer(endpoint, controllerIP, allowedIPs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = peerInfo{endpoint, controllerIP, allowedIPs}
}

// RotateRouterKey replaces the router's signing key and returns the new
// public half.
func (s *Server) RotateRouterKey() ed25519.PublicKey {
	pub, _ := cryptox.GenerateSigningKeyPair()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routerPub = pub
	return pub
}

func (s *Server) RouterPublicKey() ed25519.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routerPub
}

func (s *Server) Daemon(id int64) (Daemon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.daemons[id]
	if !ok {
		return Daemon{}, false
	}
	return *d, true
}

func (s *Server) Daemons() []Daemon {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Daemon, 0, len(s.daemons))
	for _, d := range s.daemons {
		out = append(out, *d)
	}
	return out
}

func (s *Server) Approve(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.daemons[id]; ok {
		d.Approved = true
	}
}

// middleware

func (s *Server) op(op Op, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.counts[op].Inc()

		s.mu.Lock()
		hook := s.hooks[op]
		var f *failure
		if cur, ok := s.failures[op]; ok {
			f = &failure{status: cur.status, message: cur.message}
			if cur.remaining > 0 {
				cur.remaining--
				if cur.remaining == 0 {
					delete(s.failures, op)
				}
			}
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if f != nil {
			writeError(w, f.status, f.message)
			return
		}
		next(w, r)
	}
}

func (s *Server) bearer(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		h := r.Header.Get(common.AuthorizationHeaderName)
		if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		uid, err := s.parseToken(h[len(prefix):], "access")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, uid)
	}
}

func (s *Server) signed(next func(http.ResponseWriter, *http.Request, *Daemon)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "daemonID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid daemon id")
			return
		}

		s.mu.Lock()
		d, ok := s.daemons[id]
		var pub ed25519.PublicKey
		var company string
		if ok {
			pub, company = d.PublicKey, d.Company
		}
		now := s.now()
		s.mu.Unlock()

		if !ok || company != chi.URLParam(r, "company") {
			writeError(w, http.StatusNotFound, "Daemon not found")
			return
		}
		msg, err := cryptox.VerifySignedAuthorization(r.Header.Get(common.AuthorizationHeaderName), pub)
		if err != nil || len(msg) != 8 {
			writeError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		ts := time.Unix(int64(binary.LittleEndian.Uint64(msg)), 0)
		if skew := now.Sub(ts); skew > maxSignatureSkew || skew < -maxSignatureSkew {
			writeError(w, http.StatusUnauthorized, "Signature expired")
			return
		}

		s.mu.Lock()
		d, ok = s.daemons[id]
		var snapshot Daemon
		if ok {
			snapshot = *d
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "Daemon not found")
			return
		}
		next(w, r, &snapshot)
	}
}

// tokens

type claims struct {
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *Server) issue(uid int64, kind string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	now, gen := s.now(), s.generation
	s.mu.Unlock()

	c := claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(uid, 10),
			ID:        strconv.Itoa(gen),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) parseToken(raw, kind string) (int64, error) {
	s.mu.Lock()
	now, gen := s.now, s.generation
	s.mu.Unlock()

	c := claims{}
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return 0, err
	}
	if c.Kind != kind {
		return 0, errors.New("wrong token kind")
	}
	if kind == "access" && c.ID != strconv.Itoa(gen) {
		return 0, errors.New("token revoked")
	}
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (s *Server) writeSession(w http.ResponseWriter, u models.User) {
	access, err := s.issue(u.ID, "access", s.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.issue(u.ID, "refresh", 30*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{Name: common.AccessTokenCookieName, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: common.RefreshTokenCookieName, Value: refresh, Path: "/", HttpOnly: true})

	var body struct {
		ID      int64  `json:"id"`
		Email   string `json:"email"`
		Company struct {
			Name string `json:"name"`
		} `json:"company"`
	}
	body.ID, body.Email, body.Company.Name = u.ID, u.Email, u.CompanyName
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": message})
}

func (s *Server) String() string {
	return fmt.Sprintf("backendtest.Server(%s)", s.BaseURL())
}
