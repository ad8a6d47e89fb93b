package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"github.com/dmitrijs2005/wgdaemon/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TokenStore is the part of the credential store the gateway needs.
type TokenStore interface {
	Tokens(ctx context.Context) (models.Tokens, error)
	SaveTokens(ctx context.Context, t models.Tokens) error
}

type authMode int

const (
	authBearer authMode = iota
	authNone
	authSigned
)

// Auth selects how a call authenticates. The zero value is bearer.
type Auth struct {
	mode  authMode
	value string
}

var (
	AuthBearer = Auth{mode: authBearer}
	AuthNone   = Auth{mode: authNone}
)

// AuthSigned sends value verbatim as the Authorization header.
func AuthSigned(value string) Auth {
	return Auth{mode: authSigned, value: value}
}

// Call describes one backend request. Path is relative to the base URL.
type Call struct {
	Method string
	Path   string
	Body   any
	Auth   Auth

	cookies []*http.Cookie
}

const (
	defaultRequestTimeout = 15 * time.Second
	defaultRefreshTimeout = 15 * time.Second
)

// Gateway sends JSON requests to the backend. Bearer calls that come back
// 401 join a single shared token refresh and are retried once.
type Gateway struct {
	baseURL        *url.URL
	httpClient     *http.Client
	tokens         TokenStore
	log            logging.Logger
	sink           Sink
	requestTimeout time.Duration
	refreshTimeout time.Duration

	flight singleflight.Group
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithSink installs a diagnostic observer for every exchange.
func WithSink(s Sink) Option {
	return func(g *Gateway) { g.sink = s }
}

// WithRequestTimeout bounds each individual HTTP attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.requestTimeout = d
		}
	}
}

// WithRefreshTimeout bounds the shared refresh flight.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.refreshTimeout = d
		}
	}
}

func NewGateway(baseURL string, tokens TokenStore, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: scheme and host required", baseURL)
	}

	g := &Gateway{
		baseURL:        u,
		httpClient:     &http.Client{},
		tokens:         tokens,
		log:            logging.Nop(),
		requestTimeout: defaultRequestTimeout,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// response is a fully read HTTP answer.
type response struct {
	status  int
	body    []byte
	cookies []*http.Cookie
}

// Do performs c and decodes a 2xx JSON body into out (which may be nil).
func (g *Gateway) Do(ctx context.Context, c Call, out any) error {
	_, err := g.DoWithCookies(ctx, c, out)
	return err
}

// DoWithCookies is Do that also returns the cookies the final response set.
func (g *Gateway) DoWithCookies(ctx context.Context, c Call, out any) ([]*http.Cookie, error) {
	if c.Auth.mode != authBearer {
		resp, err := g.send(ctx, c, "")
		if err != nil {
			return nil, err
		}
		return resp.cookies, resp.decode(out)
	}

	tok, err := g.tokens.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}

	resp, err := g.send(ctx, c, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized || c.Path == RefreshPath {
		return resp.cookies, resp.decode(out)
	}

	g.log.Debug(ctx, "access token rejected, joining refresh", "path", c.Path)
	if err := g.awaitRefresh(ctx, tok.AccessToken); err != nil {
		return nil, err
	}

	tok, err = g.tokens.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}
	resp, err = g.send(ctx, c, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	return resp.cookies, resp.decode(out)
}

func (g *Gateway) send(parent context.Context, c Call, accessToken string) (*response, error) {
	ctx, cancel := context.WithTimeout(parent, g.requestTimeout)
	defer cancel()

	var reqBody []byte
	if c.Body != nil {
		b, err := json.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = b
	}

	target := g.baseURL.JoinPath(c.Path)
	req, err := http.NewRequestWithContext(ctx, c.Method, target.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	switch c.Auth.mode {
	case authBearer:
		if accessToken != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+accessToken)
		}
	case authSigned:
		req.Header.Set(common.AuthorizationHeaderName, c.Auth.value)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	start := time.Now()
	httpResp, err := g.httpClient.Do(req)
	ex := Exchange{
		RequestID:     req.Header.Get(common.RequestIDHeaderName),
		Method:        c.Method,
		URL:           target.String(),
		RequestHeader: req.Header,
		RequestBody:   reqBody,
	}
	if err != nil {
		ex.Duration, ex.Err = time.Since(start), err
		g.observe(ctx, ex)
		// the caller's own cancellation is not an availability problem
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, c.Method, c.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	ex.Duration = time.Since(start)
	ex.StatusCode = httpResp.StatusCode
	ex.ResponseHeader = httpResp.Header
	ex.ResponseBody = body
	ex.Err = err
	g.observe(ctx, ex)
	if err != nil {
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return &response{status: httpResp.StatusCode, body: body, cookies: httpResp.Cookies()}, nil
}

func (g *Gateway) observe(ctx context.Context, ex Exchange) {
	if g.sink != nil {
		g.sink.Observe(ctx, ex)
	}
}

func (r *response) decode(out any) error {
	switch {
	case r.status >= 200 && r.status < 300:
		if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	case r.status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, r.message())
	default:
		return &ServerRejection{StatusCode: r.status, Message: r.message()}
	}
}

// message returns the backend's "message" field, or the raw body.
func (r *response) message() string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(r.body, &payload); err == nil && len(payload.Message) > 0 {
		var s string
		if json.Unmarshal(payload.Message, &s) == nil {
			return s
		}
		// some endpoints answer with a list of validation messages
		var list []string
		if json.Unmarshal(payload.Message, &list) == nil {
			return strings.Join(list, "; ")
		}
	}
	return strings.TrimSpace(string(r.body))
}
