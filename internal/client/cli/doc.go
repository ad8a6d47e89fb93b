// Package cli provides the interactive wgdaemon command-line client.
//
// It wires configuration, the local credential store, the backend gateway,
// the provisioning services and an interactive REPL. A saved session is
// restored on start, so a signed-in user can go straight to "register".
//
// Key features:
//   - Sign in with an identity-provider token or an e-mailed code
//   - Register a daemon and install its WireGuard tunnel in one step
//   - List daemons, check approval, refresh the network peer
//   - Delete a daemon, sign out, wipe local state
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
