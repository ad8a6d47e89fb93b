package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	if a.user == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", a.user.Email)
}

// Root loads any saved session and runs the REPL until the user exits or
// stdin closes.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to wgdaemon (type 'help' for commands)")

	a.loadUser(ctx)

	runREPL(ctx, a, a.getStatus, a.reader)
}
