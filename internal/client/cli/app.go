package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/config"
	"github.com/dmitrijs2005/twidder/internal/client/db"
	"github.com/dmitrijs2005/twidder/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/twidder/internal/client/services"
	"github.com/dmitrijs2005/twidder/internal/client/signer"
	"github.com/dmitrijs2005/twidder/internal/client/stub"
	"github.com/dmitrijs2005/twidder/internal/logging"
)

// Tab is one of the three views of the client.
type Tab string

const (
	TabHome    Tab = "home"
	TabBrowse  Tab = "browse"
	TabAccount Tab = "account"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	client  client.Client
	session *services.SessionService
	browse  *services.BrowseService
	account *services.AccountService
	term    *terminal
	reader  *bufio.Reader
	log     logging.Logger

	tab Tab
	// media is the data-URI attached to the next post.
	media string
}

// NewApp wires the backend, the session store and the services described
// by c. The stub backend keeps everything, the session included, in memory.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	s, err := signer.New(c.Signer)
	if err != nil {
		return nil, err
	}

	if c.Backend == config.BackendStub {
		log.Info(ctx, "using in-memory backend")
		a := newApp(stub.New(s), metadata.NewMemoryRepository(), s, os.Stdin, os.Stdout, log)
		a.config = c
		return a, nil
	}

	database, err := db.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	api := client.NewHTTPClient(c.ServerURL, c.ChannelURL, s, c.ChannelDialTimeout)
	a := newApp(api, metadata.NewSQLiteRepository(database), s, os.Stdin, os.Stdout, log)
	a.config = c
	a.db = database
	return a, nil
}

func newApp(api client.Client, store metadata.Repository, s signer.Signer, in io.Reader, out io.Writer, log logging.Logger) *App {
	term := newTerminal(out)
	session := services.NewSessionService(api, store, s, term, term, log)
	return &App{
		client:  api,
		session: session,
		browse:  services.NewBrowseService(api, session, term, log),
		account: services.NewAccountService(api, session, log),
		term:    term,
		reader:  bufio.NewReader(in),
		log:     log.With("component", "cli"),
		tab:     TabHome,
	}
}

// Run restores the previous session, if any, and serves commands until
// the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.config != nil {
		a.log.Info(ctx, "client started", "backend", a.config.Backend, "server", a.config.ServerURL, "signer", a.config.Signer)
	}
	printlnFn("Welcome to Twidder (type 'help' for commands)")
	_ = a.Navigate(ctx, TabHome)

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == services.Authenticated
}

func (a *App) status() string {
	sess, ok := a.session.Current()
	if !ok {
		return ""
	}
	return sess.Email + " " + string(a.tab)
}

// Navigate is the single navigation handler. Without a session it first
// re-runs bootstrap, which loads the home wall; with one it reloads the
// data of the tab.
func (a *App) Navigate(ctx context.Context, tab Tab) error {
	return a.run(func() error {
		if !a.isLoggedIn() {
			if err := a.session.Bootstrap(ctx); err != nil {
				return err
			}
			a.log.Debug(ctx, "session restored on navigation", "tab", tab)
		} else if err := a.reload(ctx, tab); err != nil {
			return err
		}
		a.show(tab)
		return nil
	})
}

func (a *App) reload(ctx context.Context, tab Tab) error {
	switch tab {
	case TabHome:
		sess, ok := a.session.Current()
		if !ok {
			return nil
		}
		return a.session.Home().Reload(ctx, sess.Email)
	case TabBrowse:
		if owner := a.browse.Wall().Owner(); owner != "" {
			return a.browse.Browse(ctx, owner)
		}
	}
	return nil
}

// show switches the screen to tab and prints it.
func (a *App) show(tab Tab) {
	a.tab = tab
	switch tab {
	case TabHome:
		a.term.focus(services.WallHome)
		if p, ok := a.session.Profile(); ok {
			a.term.showWall(services.WallHome, p.FullName())
		}
	case TabBrowse:
		a.term.focus(services.WallBrowse)
		p, ok := a.browse.Profile()
		if !ok {
			a.term.printf("Nobody browsed yet. Use: browse <email>\n")
			return
		}
		a.term.showProfile(p)
		a.term.showWall(services.WallBrowse, p.FullName())
	case TabAccount:
		a.term.focus("")
		if p, ok := a.session.Profile(); ok {
			a.term.showProfile(p)
		}
	}
}

// run shows the error fn returns unless the services already told the
// user about it.
func (a *App) run(fn func() error) error {
	before := a.term.noticeCount()
	err := fn()
	if err != nil && a.term.noticeCount() == before {
		a.term.Error(services.Message(err))
	}
	return err
}
