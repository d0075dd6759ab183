package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/rwasim"
	"github.com/roach88/rwaverify/internal/seed"
)

// AppURL is the UI origin of an App.
const AppURL = "http://rwa.local"

// Admin is the administrator every App is seeded with, matching the
// built-in test environment.
var Admin = rwasim.User{FirstName: "Ted", LastName: "Parisian", Username: "Heath93", Password: "s3cret"}

// App is the simulated application wired up in-process: backend API and
// identity service on httptest servers, and a simulated browser on top of
// the same backend.
type App struct {
	Backend  *rwasim.Backend
	Identity *rwasim.IdentityService
	Browser  *rwasim.Browser

	APIURL      string
	IdentityURL string
}

// NewApp starts an App; servers are closed when t finishes.
func NewApp(t testing.TB, cfg rwasim.Config) *App {
	t.Helper()
	backend := rwasim.NewBackend(cfg)
	if _, err := backend.CreateUser(Admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	api := httptest.NewServer(backend.Handler())
	t.Cleanup(api.Close)

	identity := rwasim.NewIdentityService(17)
	ids := httptest.NewServer(identity)
	t.Cleanup(ids.Close)

	return &App{
		Backend:     backend,
		Identity:    identity,
		Browser:     rwasim.NewBrowser(backend, AppURL),
		APIURL:      api.URL,
		IdentityURL: ids.URL + "/api/",
	}
}

// Gateway returns a seed gateway against the App.
func (a *App) Gateway(seedValue uint64) *seed.Gateway {
	return seed.NewGateway(seed.Options{
		APIURL:     a.APIURL,
		Timeout:    5 * time.Second,
		Identities: seed.NewRandomUserSource(resty.New(), a.IdentityURL),
		Seed:       seedValue,
		Logger:     Discard(),
	})
}

// FastUI returns UI options suited to the simulator, which settles
// immediately.
func FastUI() browser.Options {
	return browser.Options{
		ActionTimeout: time.Second,
		Expect: browser.Poller{
			Timeout:     300 * time.Millisecond,
			Interval:    time.Millisecond,
			MaxInterval: 5 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
