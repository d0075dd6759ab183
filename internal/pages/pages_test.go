package pages_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/pages"
	"github.com/roach88/rwaverify/internal/rwasim"
)

const baseURL = "http://rwa.local"

func fastOptions() browser.Options {
	return browser.Options{
		ActionTimeout: time.Second,
		Expect:        browser.Poller{Timeout: 300 * time.Millisecond, Interval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2},
	}
}

type fixture struct {
	backend *rwasim.Backend
	sim     *rwasim.Browser
}

func newFixture(cfg rwasim.Config) *fixture {
	b := rwasim.NewBackend(cfg)
	return &fixture{backend: b, sim: rwasim.NewBrowser(b, baseURL)}
}

// bind opens a fresh context for st and returns a binding on its page.
func (f *fixture) bind(t *testing.T, st *actor.State) pages.Binding {
	t.Helper()
	ctx := context.Background()
	bctx, err := f.sim.NewContext(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bctx.Close() })
	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)
	return pages.Binding{UI: browser.NewUI(page, fastOptions()), Actor: st, BaseURL: baseURL}
}

// seeded registers st directly on the backend with a bank account so it
// skips onboarding.
func (f *fixture) seeded(t *testing.T, label string, g *actor.Generator) *actor.State {
	t.Helper()
	st := actor.New(label)
	id := actor.Identity{
		FirstName: "First" + g.String(4, actor.Lower),
		LastName:  "Last" + g.String(4, actor.Lower),
		Username:  label + actor.UniqueSuffix(),
		Password:  "s3cret",
	}
	u, err := f.backend.CreateUser(rwasim.User{
		FirstName: id.FirstName, LastName: id.LastName, Username: id.Username, Password: id.Password,
		BalanceCents: 500000,
	})
	require.NoError(t, err)
	bank := g.Bank()
	_, err = f.backend.CreateBankAccount(u.ID, bank.BankName, bank.AccountNumber, bank.RoutingNumber)
	require.NoError(t, err)
	require.NoError(t, st.SetIdentity(id))
	st.MarkRegistered(u.ID)
	st.SetBank(bank)
	return st
}

func login(t *testing.T, b pages.Binding) {
	t.Helper()
	auth := pages.NewAuth(b)
	require.NoError(t, auth.Launch(context.Background()))
	require.NoError(t, auth.Login(context.Background()))
}

func TestRegisterOnboardAndLogin(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	g := actor.NewGenerator(1)
	st := actor.New("alice")
	b := f.bind(t, st)
	ctx := context.Background()

	id := actor.Identity{FirstName: "Alice", LastName: "Able", Username: "alice" + actor.UniqueSuffix(), Password: "s3cret"}
	reg := pages.NewRegistration(b)
	require.NoError(t, reg.Open(ctx))
	require.NoError(t, reg.Register(ctx, id))
	assert.True(t, st.Registered())

	login(t, b)
	bank := g.Bank()
	require.NoError(t, pages.NewOnboarding(b).Complete(ctx, bank))
	assert.Equal(t, bank, st.Bank())

	nav := pages.NewSideNav(b)
	require.NoError(t, nav.ExpectSignedIn(ctx))
	bal, err := nav.Balance(ctx)
	require.NoError(t, err)
	assert.Zero(t, bal)

	banks := pages.NewBankAccounts(b)
	require.NoError(t, banks.Open(ctx))
	require.NoError(t, banks.VerifyListed(ctx, bank.BankName))
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	st := f.seeded(t, "alice", actor.NewGenerator(2))
	b := f.bind(t, st)
	ctx := context.Background()
	auth := pages.NewAuth(b)
	id := st.Identity()

	require.NoError(t, auth.Launch(ctx))
	require.NoError(t, auth.LoginRejected(ctx, id.Username, id.Password+"x"))
	require.NoError(t, auth.LoginRejected(ctx, "ALICE"+id.Username[5:], id.Password))
}

func TestSigninFieldValidation(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	b := f.bind(t, actor.New("alice"))
	auth := pages.NewAuth(b)
	require.NoError(t, auth.Launch(context.Background()))
	require.NoError(t, auth.VerifyFieldValidation(context.Background()))
}

func TestBankFormValidation(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	st := f.seeded(t, "alice", actor.NewGenerator(3))
	b := f.bind(t, st)
	ctx := context.Background()
	login(t, b)

	banks := pages.NewBankAccounts(b)
	require.NoError(t, banks.Open(ctx))
	require.NoError(t, banks.OpenForm(ctx))
	require.NoError(t, banks.VerifyFormValidation(ctx))
}

func TestCreateSecondBankAccount(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	g := actor.NewGenerator(4)
	st := f.seeded(t, "alice", g)
	b := f.bind(t, st)
	ctx := context.Background()
	login(t, b)

	banks := pages.NewBankAccounts(b)
	require.NoError(t, banks.Open(ctx))
	second := g.Bank()
	second.BankName = "Second Savings"
	require.NoError(t, banks.Create(ctx, second))
	listed, err := banks.Listed(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.Equal(t, second, st.Bank())
}

func TestSettingsEdit(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	st := f.seeded(t, "alice", actor.NewGenerator(5))
	b := f.bind(t, st)
	ctx := context.Background()
	login(t, b)

	settings := pages.NewSettings(b)
	require.NoError(t, settings.Open(ctx))
	require.NoError(t, settings.VerifyDetails(ctx))

	first, email := "Alicia", "alicia@example.com"
	require.NoError(t, settings.Edit(ctx, actor.ProfileEdit{FirstName: &first, Email: &email}))
	assert.Equal(t, "Alicia", st.Identity().FirstName)

	u, err := f.backend.UserByUsername(st.Identity().Username)
	require.NoError(t, err)
	assert.Equal(t, email, u.Email)
}

func TestPayAndVerifyBothSides(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	g := actor.NewGenerator(6)
	alice := f.seeded(t, "alice", g)
	bob := f.seeded(t, "bob", g)
	ctx := context.Background()

	bb := f.bind(t, bob)
	login(t, bb)
	require.NoError(t, pages.NewNewTransaction(bb).Pay(ctx, alice.Identity(), 20, "Testing 123"))
	last, ok := bob.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, actor.Transaction{Amount: 20, Note: "Testing 123"}, last)

	want := pages.Row{
		Sender:   bob.Identity().FullName(),
		Receiver: alice.Identity().FullName(),
		Action:   pages.ActionPaid,
		Amount:   -20,
		Note:     "Testing 123",
	}
	list := pages.NewTransactionList(bb)
	require.NoError(t, list.Open(ctx, pages.TabMine))
	require.NoError(t, list.VerifyLatest(ctx, want))

	ab := f.bind(t, alice)
	login(t, ab)
	aliceList := pages.NewTransactionList(ab)
	require.NoError(t, aliceList.Open(ctx, pages.TabMine))
	row, err := aliceList.Latest(ctx)
	require.NoError(t, err)
	want.Amount = 20
	assert.Equal(t, want, row)

	bal, err := pages.NewSideNav(ab).Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5020), bal)

	require.NoError(t, aliceList.OpenLatest(ctx))
	detail := pages.NewTransactionDetail(ab)
	require.NoError(t, detail.Verify(ctx, pages.Detail{Row: want}))
	require.NoError(t, detail.Like(ctx))
}

func TestRequestAcceptFromDetail(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	g := actor.NewGenerator(7)
	alice := f.seeded(t, "alice", g)
	bob := f.seeded(t, "bob", g)
	ctx := context.Background()

	bb := f.bind(t, bob)
	login(t, bb)
	require.NoError(t, pages.NewNewTransaction(bb).Request(ctx, alice.Identity(), 40, "Dinner"))

	ab := f.bind(t, alice)
	login(t, ab)
	list := pages.NewTransactionList(ab)
	require.NoError(t, list.Open(ctx, pages.TabMine))
	require.NoError(t, list.OpenLatest(ctx))

	detail := pages.NewTransactionDetail(ab)
	got, err := detail.Read(ctx)
	require.NoError(t, err)
	assert.True(t, got.CanAccept)
	assert.True(t, got.CanReject)
	assert.Equal(t, int64(-40), got.Amount)
	assert.Equal(t, pages.ActionRequested, got.Action)

	require.NoError(t, detail.Accept(ctx))
	got, err = detail.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, pages.ActionCharged, got.Action)
	assert.False(t, got.CanAccept)
}

func TestNoUsersFound(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	st := f.seeded(t, "alice", actor.NewGenerator(8))
	b := f.bind(t, st)
	ctx := context.Background()
	login(t, b)

	nt := pages.NewNewTransaction(b)
	require.NoError(t, nt.Open(ctx))
	require.NoError(t, nt.VerifyNoUsersFound(ctx, "no-such-user-xyz"))
}

func TestExpectationTimesOutWithObservedState(t *testing.T) {
	f := newFixture(rwasim.DefaultConfig())
	st := f.seeded(t, "alice", actor.NewGenerator(9))
	b := f.bind(t, st)
	login(t, b)

	err := b.UI.ExpectText(context.Background(), pages.SideNavBalance, "$1.00")
	require.Error(t, err)
	assert.True(t, browser.IsTimeout(err))
	assert.Contains(t, err.Error(), "$5,000.00")
}
