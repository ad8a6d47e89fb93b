package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isSignedIn() bool
	SignIn(ctx context.Context, args []string) error
	EmailSignIn(ctx context.Context, args []string) error
	SignOut(ctx context.Context) error
	Register(ctx context.Context, args []string) error
	Devices(ctx context.Context) error
	Approval(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Wipe(ctx context.Context) error
}

// runREPL reads one command per line from in and dispatches it to a.
//
//	Signed out:
//	  - signin <google|microsoft>  sign in with an identity-provider token
//	  - email <address>            sign in with an e-mailed code
//
//	Signed in:
//	  - register <name>            provision a daemon and install its tunnel
//	  - (l)ist                     list locally known daemons
//	  - approval <id>              show the approval state of a daemon
//	  - refresh <id>               re-fetch the network peer of a daemon
//	  - delete <id>                delete a daemon everywhere
//	  - signout                    end the session, keep device keys
//
//	Always:
//	  - wipe                       remove all tunnels and local state
//	  - help, exit | quit
//
// Command errors are printed and the loop continues. It returns on EOF or exit.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("wg %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isSignedIn() {
				printlnFn("Available commands: register, (l)ist, approval, refresh, delete, signout, wipe, exit")
			} else {
				printlnFn("Available commands: signin, email, wipe, exit")
			}

		case "signin":
			cmdErr = a.SignIn(ctx, args)

		case "email":
			cmdErr = a.EmailSignIn(ctx, args)

		case "signout":
			cmdErr = a.SignOut(ctx)

		case "register":
			cmdErr = a.Register(ctx, args)

		case "l", "list":
			cmdErr = a.Devices(ctx)

		case "approval":
			cmdErr = a.Approval(ctx, args)

		case "refresh":
			cmdErr = a.Refresh(ctx, args)

		case "delete":
			cmdErr = a.Delete(ctx, args)

		case "wipe":
			cmdErr = a.Wipe(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
