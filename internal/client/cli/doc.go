// Package cli provides the interactive Twidder terminal client.
//
// It wires configuration, the local session store, the backend gateway and
// the services behind a REPL. On start the previous session is restored if
// the backend still accepts it; afterwards the user moves between the home,
// browse and account tabs, posts on walls and manages the account.
//
// The terminal type is both the services.Notifier and the services.Renderer:
// it prints notices and keeps its own copy of each wall built from patches.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
