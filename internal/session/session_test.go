package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/rwasim"
)

const baseURL = "http://rwa.local"

func testComposer() *Composer {
	return NewComposer(baseURL, browser.Options{
		ActionTimeout: time.Second,
		Expect:        browser.Poller{Timeout: 300 * time.Millisecond, Interval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	})
}

func seeded(t *testing.T, b *rwasim.Backend, label string) *actor.State {
	t.Helper()
	id := actor.Identity{FirstName: label, LastName: "Tester", Username: label + actor.UniqueSuffix(), Password: "s3cret"}
	u, err := b.CreateUser(rwasim.User{FirstName: id.FirstName, LastName: id.LastName, Username: id.Username, Password: id.Password, BalanceCents: 500000})
	require.NoError(t, err)
	_, err = b.CreateBankAccount(u.ID, "Evergreen Savings", "123456789", "987654321")
	require.NoError(t, err)
	st := actor.New(label)
	require.NoError(t, st.SetIdentity(id))
	st.MarkRegistered(u.ID)
	return st
}

func TestSessionSignInOut(t *testing.T) {
	backend := rwasim.NewBackend(rwasim.DefaultConfig())
	sim := rwasim.NewBrowser(backend, baseURL)
	st := seeded(t, backend, "alice")
	ctx := context.Background()

	s, err := Open(ctx, sim, testComposer(), st)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "alice", s.Name())
	assert.True(t, st.Bound())

	require.NoError(t, s.SignIn(ctx))
	require.NoError(t, s.SideNav.ExpectSignedIn(ctx))
	bal, err := s.SideNav.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal)

	require.NoError(t, s.SignOut(ctx))
	url, err := s.Page().URL(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, "/signin")
}

func TestOpenRejectsBoundActor(t *testing.T) {
	backend := rwasim.NewBackend(rwasim.DefaultConfig())
	sim := rwasim.NewBrowser(backend, baseURL)
	st := seeded(t, backend, "alice")
	ctx := context.Background()

	first, err := Open(ctx, sim, testComposer(), st)
	require.NoError(t, err)

	_, err = Open(ctx, sim, testComposer(), st)
	assert.ErrorIs(t, err, actor.ErrAlreadyBound)

	require.NoError(t, CloseAll(first, nil))
	assert.False(t, st.Bound())

	again, err := Open(ctx, sim, testComposer(), st)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestComposeOnePageTwoActors(t *testing.T) {
	backend := rwasim.NewBackend(rwasim.DefaultConfig())
	sim := rwasim.NewBrowser(backend, baseURL)
	alice := seeded(t, backend, "alice")
	bob := seeded(t, backend, "bob")
	ctx := context.Background()

	bctx, err := sim.NewContext(ctx)
	require.NoError(t, err)
	defer bctx.Close()
	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)

	c := testComposer()
	da, err := c.Compose(page, alice)
	require.NoError(t, err)
	defer da.Release()
	db, err := c.Compose(page, bob)
	require.NoError(t, err)
	defer db.Release()

	assert.Same(t, alice, da.Auth.Actor())
	assert.Same(t, bob, db.SideNav.Actor())

	require.NoError(t, da.Auth.Launch(ctx))
	require.NoError(t, da.Auth.Login(ctx))
	require.NoError(t, da.SideNav.Logout(ctx))
	require.NoError(t, db.Auth.Launch(ctx))
	require.NoError(t, db.Auth.Login(ctx))
	require.NoError(t, db.SideNav.ExpectSignedIn(ctx))
}

func TestParallelSessionsAreIsolated(t *testing.T) {
	backend := rwasim.NewBackend(rwasim.DefaultConfig())
	sim := rwasim.NewBrowser(backend, baseURL)

	for _, label := range []string{"alice", "bob", "carol", "dave"} {
		t.Run(label, func(t *testing.T) {
			t.Parallel()
			st := seeded(t, backend, label)
			ctx := context.Background()
			s, err := Open(ctx, sim, testComposer(), st)
			require.NoError(t, err)
			defer s.Close()
			require.NoError(t, s.SignIn(ctx))
			require.NoError(t, s.SideNav.ExpectSignedIn(ctx))
		})
	}
}
