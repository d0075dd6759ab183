// Package session composes page drivers for one actor and owns the
// browser context that actor lives in.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/pages"
)

// Drivers is the full driver set bound to one page and one actor.
type Drivers struct {
	Auth           *pages.Auth
	Registration   *pages.Registration
	Onboarding     *pages.Onboarding
	Settings       *pages.Settings
	BankAccounts   *pages.BankAccounts
	NewTransaction *pages.NewTransaction
	Transactions   *pages.TransactionList
	Detail         *pages.TransactionDetail
	SideNav        *pages.SideNav

	actor   *actor.State
	release func()
}

// Actor returns the state every driver in the set is bound to.
func (d *Drivers) Actor() *actor.State {
	return d.actor
}

// Release gives up the actor's lease. Safe to call more than once.
func (d *Drivers) Release() {
	d.release()
}

// Composer builds driver sets. It carries what every driver shares: the
// application URL and the UI timeouts.
type Composer struct {
	baseURL string
	opts    browser.Options
}

// NewComposer creates a composer for the application at baseURL.
func NewComposer(baseURL string, opts browser.Options) *Composer {
	return &Composer{baseURL: baseURL, opts: opts}
}

// Compose binds a fresh driver set to page and st and takes st's lease.
// Composing a different state against the same page is allowed (one page
// may impersonate several actors in turn); composing a state that is
// already bound fails with actor.ErrAlreadyBound.
func (c *Composer) Compose(page browser.Page, st *actor.State) (*Drivers, error) {
	release, err := st.Bind()
	if err != nil {
		return nil, err
	}
	opts := c.opts
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("actor", st.Label())
	}
	b := pages.Binding{UI: browser.NewUI(page, opts), Actor: st, BaseURL: c.baseURL}
	return &Drivers{
		Auth:           pages.NewAuth(b),
		Registration:   pages.NewRegistration(b),
		Onboarding:     pages.NewOnboarding(b),
		Settings:       pages.NewSettings(b),
		BankAccounts:   pages.NewBankAccounts(b),
		NewTransaction: pages.NewNewTransaction(b),
		Transactions:   pages.NewTransactionList(b),
		Detail:         pages.NewTransactionDetail(b),
		SideNav:        pages.NewSideNav(b),
		actor:          st,
		release:        release,
	}, nil
}

// Session is one actor in its own browser context.
type Session struct {
	*Drivers

	bctx   browser.Context
	page   browser.Page
	logger *slog.Logger
}

// Open creates an isolated browser context and page for st and composes
// its drivers.
func Open(ctx context.Context, b browser.Browser, c *Composer, st *actor.State) (*Session, error) {
	bctx, err := b.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st.Label(), err)
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("%s: %w", st.Label(), err)
	}
	drivers, err := c.Compose(page, st)
	if err != nil {
		bctx.Close()
		return nil, err
	}
	logger := c.opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{Drivers: drivers, bctx: bctx, page: page, logger: logger.With("actor", st.Label())}, nil
}

// Name is the actor label.
func (s *Session) Name() string {
	return s.Actor().Label()
}

// Page returns the session's page.
func (s *Session) Page() browser.Page {
	return s.page
}

// Close releases the actor and closes the browser context.
func (s *Session) Close() error {
	s.Release()
	return s.bctx.Close()
}

// SignIn launches the sign-in screen and logs the actor in.
func (s *Session) SignIn(ctx context.Context) error {
	if err := s.Auth.Launch(ctx); err != nil {
		return err
	}
	if err := s.Auth.Login(ctx); err != nil {
		return err
	}
	s.logger.Debug("signed in")
	return nil
}

// SignOut logs the actor out.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.SideNav.Logout(ctx); err != nil {
		return err
	}
	s.logger.Debug("signed out")
	return nil
}

// CloseAll closes every session and joins the errors.
func CloseAll(sessions ...*Session) error {
	var errs []error
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
