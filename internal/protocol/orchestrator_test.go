package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/metrics"
	"github.com/roach88/rwaverify/internal/rwasim"
	"github.com/roach88/rwaverify/internal/session"
)

const baseURL = "http://rwa.local"

type world struct {
	backend *rwasim.Backend
	alice   *session.Session
	bob     *session.Session
	records []Record
}

func newWorld(t *testing.T, cfg rwasim.Config) *world {
	t.Helper()
	w := &world{backend: rwasim.NewBackend(cfg)}
	sim := rwasim.NewBrowser(w.backend, baseURL)
	composer := session.NewComposer(baseURL, browser.Options{
		ActionTimeout: time.Second,
		Expect:        browser.Poller{Timeout: 300 * time.Millisecond, Interval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	})
	g := actor.NewGenerator(42)
	open := func(label string) *session.Session {
		id := actor.Identity{
			FirstName: "F" + g.String(5, actor.Lower),
			LastName:  "L" + g.String(5, actor.Lower),
			Username:  label + actor.UniqueSuffix(),
			Password:  "s3cret",
		}
		u, err := w.backend.CreateUser(rwasim.User{FirstName: id.FirstName, LastName: id.LastName, Username: id.Username, Password: id.Password, BalanceCents: 500000})
		require.NoError(t, err)
		bank := g.Bank()
		_, err = w.backend.CreateBankAccount(u.ID, bank.BankName, bank.AccountNumber, bank.RoutingNumber)
		require.NoError(t, err)
		st := actor.New(label)
		require.NoError(t, st.SetIdentity(id))
		st.MarkRegistered(u.ID)
		st.SetBank(bank)

		s, err := session.Open(context.Background(), sim, composer, st)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	w.alice = open("alice")
	w.bob = open("bob")
	return w
}

func (w *world) orchestrator(mode invariant.Mode, rec metrics.Recorder) *Orchestrator {
	return New(Options{Mode: mode, Metrics: rec, OnRecord: func(r Record) { w.records = append(w.records, r) }})
}

func (w *world) actions() []string {
	var out []string
	for _, r := range w.records {
		out = append(out, r.Actor+" "+r.Action)
	}
	return out
}

func findingsByActor(out Outcome) map[string]invariant.Finding {
	m := map[string]invariant.Finding{}
	for _, f := range out.Findings {
		m[f.Actor] = f
	}
	return m
}

// Bob pays Alice 20 "Testing 123".
func TestPay(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeTracked, nil)

	out, err := o.Pay(context.Background(), w.bob, w.alice, 20, "Testing 123")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, out.Transaction.Status)
	assert.Equal(t, KindPaid, out.Transaction.Kind)

	f := findingsByActor(out)
	assert.Equal(t, invariant.Finding{Actor: "bob", Step: "pay:after", Check: invariant.CheckAfterPaying, Status: invariant.StatusHeld, Before: 5000, After: 4980, Expected: 4980}, f["bob"])
	assert.Equal(t, invariant.Finding{Actor: "alice", Step: "pay:after", Check: invariant.CheckAfterReceiving, Status: invariant.StatusHeld, Before: 5000, After: 5020, Expected: 5020}, f["alice"])
	assert.Len(t, out.Snapshots, 4)
	assert.Nil(t, o.Stage().Active(), "stage is parked after the protocol")

	assert.Equal(t, []string{
		"alice snapshot",
		"bob snapshot",
		"bob pay",
		"bob verify_list",
		"bob snapshot",
		"bob check",
		"alice snapshot",
		"alice check",
		"alice verify_list",
	}, w.actions())
}

// Bob requests 40 from Alice, Alice accepts.
func TestRequestAccept(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeTracked, nil)
	ctx := context.Background()

	req, err := o.Request(ctx, w.bob, w.alice, 40, "Dinner")
	require.NoError(t, err)
	tx := req.Transaction
	assert.Equal(t, StatusPending, tx.Status)
	for _, f := range req.Findings {
		assert.Equal(t, invariant.CheckUnchanged, f.Check)
		assert.Equal(t, int64(5000), f.After)
	}

	out, err := o.Accept(ctx, &tx, w.alice, w.bob)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, tx.Status)

	f := findingsByActor(out)
	assert.Equal(t, int64(4960), f["alice"].After)
	assert.Equal(t, invariant.CheckAfterPaying, f["alice"].Check)
	assert.Equal(t, int64(5040), f["bob"].After)
	assert.Equal(t, invariant.CheckAfterReceiving, f["bob"].Check)

	var display *Record
	for i := range w.records {
		if w.records[i].Action == "balance_display" {
			display = &w.records[i]
		}
	}
	require.NotNil(t, display)
	assert.Equal(t, int64(5000), display.Args["balance"], "balance shown before re-authentication is stale")
	assert.Equal(t, true, display.Args["stale"])

	_, err = o.Accept(ctx, &tx, w.alice, w.bob)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = o.Reject(ctx, &tx, w.alice, w.bob)
	assert.ErrorIs(t, err, ErrTerminal)
}

// Bob requests 3500 "Gift" from Alice, Alice rejects.
func TestRequestRejectTracksDeviation(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	reg := prometheus.NewRegistry()
	rec := metrics.New(metrics.Config{Namespace: "test", Registry: reg})
	o := w.orchestrator(invariant.ModeTracked, rec)
	ctx := context.Background()

	req, err := o.Request(ctx, w.bob, w.alice, 3500, "Gift")
	require.NoError(t, err)
	tx := req.Transaction

	out, err := o.Reject(ctx, &tx, w.alice, w.bob)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, tx.Status)

	f := findingsByActor(out)
	assert.Equal(t, invariant.StatusHeld, f["alice"].Status)
	assert.Equal(t, int64(5000), f["alice"].After)

	assert.Equal(t, invariant.StatusDeviation, f["bob"].Status)
	assert.Equal(t, invariant.RejectCreditsRequester.ID, f["bob"].DeviationID)
	assert.Equal(t, int64(5000), f["bob"].Before)
	assert.Equal(t, int64(8500), f["bob"].After)

	// Two unchanged checks from the request, one from the reject.
	assert.Equal(t, 3.0, counterTotal(t, reg, "test_invariant_findings_total", "held"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "test_invariant_findings_total", "deviation"))
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name, status string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestRequestRejectStrictFails(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeStrict, nil)
	ctx := context.Background()

	req, err := o.Request(ctx, w.bob, w.alice, 3500, "Gift")
	require.NoError(t, err)
	tx := req.Transaction

	_, err = o.Reject(ctx, &tx, w.alice, w.bob)
	var v *invariant.ViolationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "bob", v.Actor)
	assert.Equal(t, int64(5000), v.Before)
	assert.Equal(t, int64(5000), v.Expected)
	assert.Equal(t, int64(8500), v.After)
}

func TestRequestRejectFixedBackendResolvesDeviation(t *testing.T) {
	w := newWorld(t, rwasim.Config{RejectCreditsRequester: false})
	o := w.orchestrator(invariant.ModeTracked, nil)
	ctx := context.Background()

	req, err := o.Request(ctx, w.bob, w.alice, 3500, "Gift")
	require.NoError(t, err)
	tx := req.Transaction

	_, err = o.Reject(ctx, &tx, w.alice, w.bob)
	require.Error(t, err)
	assert.True(t, invariant.IsDeviationResolved(err))
}

func TestAcceptByWrongParty(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeTracked, nil)
	ctx := context.Background()

	req, err := o.Request(ctx, w.bob, w.alice, 40, "Dinner")
	require.NoError(t, err)
	tx := req.Transaction

	_, err = o.Accept(ctx, &tx, w.bob, w.alice)
	require.ErrorIs(t, err, ErrWrongParty)
	assert.Equal(t, StatusPending, tx.Status)
}

func TestAcceptOnPayment(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeTracked, nil)
	ctx := context.Background()

	out, err := o.Pay(ctx, w.bob, w.alice, 20, "Testing 123")
	require.NoError(t, err)
	tx := out.Transaction
	_, err = o.Accept(ctx, &tx, w.bob, w.alice)
	assert.ErrorIs(t, err, ErrWrongParty)
}

func TestInvalidStep(t *testing.T) {
	w := newWorld(t, rwasim.DefaultConfig())
	o := w.orchestrator(invariant.ModeTracked, nil)
	ctx := context.Background()

	_, err := o.Pay(ctx, w.bob, w.alice, 0, "zero")
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = o.Request(ctx, w.bob, w.alice, 10, "")
	assert.ErrorIs(t, err, ErrInvalidStep)
	assert.Empty(t, w.records, "invalid steps never touch the UI")
}
