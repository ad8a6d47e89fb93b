// Package client talks to the wgdaemon backend over HTTP/JSON.
//
// # Overview
//
// The package provides:
//  1. Gateway, which sends JSON calls, injects the bearer token, and on a 401
//     joins a single shared token refresh before retrying the call once.
//     Concurrent failures within one window cause exactly one refresh request.
//  2. HTTPClient, the Client implementation for the auth, daemon and
//     network-controller endpoints.
//  3. Sink and LogSink, a redacting observer for request/response pairs.
//
// # Error Handling
//
// Transport failures and per-attempt timeouts are reported as ErrUnavailable,
// unrecoverable 401s as ErrUnauthorized, and any other non-2xx answer as a
// *ServerRejection carrying the backend's message. Match with errors.Is and
// errors.As.
//
// Concurrency & Contexts
//
// Gateway and HTTPClient are safe for concurrent use. A caller whose context
// is cancelled while waiting on a refresh returns early; the refresh itself
// keeps running for the remaining waiters.
//
// See Also
//
//   - Interface: Client
//   - Transport: Gateway, Call, AuthBearer, AuthNone, AuthSigned
//   - Errors:    ErrUnavailable, ErrUnauthorized, ServerRejection
package client
