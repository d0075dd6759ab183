package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/metrics"
	"github.com/roach88/rwaverify/internal/pages"
	"github.com/roach88/rwaverify/internal/session"
	"github.com/roach88/rwaverify/internal/tracing"
)

var (
	// ErrInvalidStep is returned for a non-positive amount or an empty note.
	ErrInvalidStep = errors.New("invalid protocol step")

	// ErrWrongParty is returned when accept or reject is driven by sessions
	// that are not the transaction's payer and requester.
	ErrWrongParty = errors.New("session is not a party to the transaction")
)

// Record is one observable protocol event, in execution order.
type Record struct {
	Actor  string         `json:"actor"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	Mode    invariant.Mode
	Logger  *slog.Logger
	Tracer  tracing.Tracer
	Metrics metrics.Recorder

	// OnRecord receives every event as it happens.
	OnRecord func(Record)
}

// Outcome is what one protocol run produced.
type Outcome struct {
	Transaction Transaction          `json:"transaction"`
	Snapshots   []invariant.Snapshot `json:"snapshots"`
	Findings    []invariant.Finding  `json:"findings"`
}

// Orchestrator runs protocols against actor sessions. One Orchestrator
// serves one scenario; it is not safe for concurrent use.
type Orchestrator struct {
	stage   Stage
	mode    invariant.Mode
	logger  *slog.Logger
	tracer  tracing.Tracer
	metrics metrics.Recorder
	emit    func(Record)
	index   int
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Mode == "" {
		opts.Mode = invariant.ModeTracked
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.OnRecord == nil {
		opts.OnRecord = func(Record) {}
	}
	return &Orchestrator{
		mode:    opts.Mode,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
		emit:    opts.OnRecord,
	}
}

// Stage exposes the alternation guard.
func (o *Orchestrator) Stage() *Stage {
	return &o.stage
}

// Park signs out whoever is active.
func (o *Orchestrator) Park(ctx context.Context) error {
	return o.stage.Park(ctx)
}

func (o *Orchestrator) record(actor, action string, args map[string]any) {
	o.logger.Debug(action, "actor", actor, "args", args)
	o.emit(Record{Actor: actor, Action: action, Args: args})
}

func failureReason(err error) string {
	switch {
	case browser.IsTimeout(err):
		return "timeout"
	case invariant.IsViolation(err):
		return "violation"
	case invariant.IsDeviationResolved(err):
		return "deviation_resolved"
	case errors.Is(err, ErrTerminal), errors.Is(err, ErrInvalidTransition):
		return "transition"
	default:
		return "error"
	}
}

// step wraps one protocol run with a span, metrics and logging.
func (o *Orchestrator) step(ctx context.Context, op Event, actor string, fn func(ctx context.Context, out *Outcome) error) (Outcome, error) {
	start := time.Now()
	ctx, span := o.tracer.StartStep(ctx, string(op), actor, o.index)
	defer span.End()
	o.index++

	var out Outcome
	err := fn(ctx, &out)
	for _, f := range out.Findings {
		o.metrics.Finding(string(f.Check), string(f.Status))
	}
	if err != nil {
		span.SetError(err)
		o.metrics.StepFailed(string(op), failureReason(err))
		o.logger.Error("protocol step failed", "op", op, "actor", actor, "error", err)
		return out, err
	}
	o.metrics.StepCompleted(string(op), time.Since(start))
	o.logger.Info("protocol step completed", "op", op, "actor", actor, "transaction", out.Transaction.String())
	return out, nil
}

// snapshot re-authenticates s and reads its displayed balance.
func (o *Orchestrator) snapshot(ctx context.Context, out *Outcome, s *session.Session, step string) (invariant.Snapshot, error) {
	if err := o.stage.Switch(ctx, s); err != nil {
		return invariant.Snapshot{}, err
	}
	bal, err := s.SideNav.Balance(ctx)
	if err != nil {
		return invariant.Snapshot{}, err
	}
	snap := invariant.Snapshot{Actor: s.Name(), Step: step, Balance: bal}
	out.Snapshots = append(out.Snapshots, snap)
	o.record(s.Name(), "snapshot", map[string]any{"step": step, "balance": bal})
	return snap, nil
}

func (o *Orchestrator) check(out *Outcome, exp invariant.Expectation, before, after invariant.Snapshot) error {
	f, err := invariant.Evaluate(o.mode, exp, before, after)
	if err != nil {
		return err
	}
	out.Findings = append(out.Findings, f)
	args := map[string]any{"check": string(f.Check), "status": string(f.Status)}
	if f.DeviationID != "" {
		args["deviation"] = f.DeviationID
		o.logger.Warn("known deviation observed", "actor", f.Actor, "deviation", f.DeviationID,
			"before", f.Before, "after", f.After)
	}
	o.record(f.Actor, "check", args)
	return nil
}

func validate(amount int64, note string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidStep, amount)
	}
	if note == "" {
		return fmt.Errorf("%w: note is required", ErrInvalidStep)
	}
	return nil
}

func fullName(s *session.Session) string {
	return s.Actor().Identity().FullName()
}

// row is the transaction as viewer sees it in lists and details.
func row(tx Transaction, sender, receiver *session.Session, viewer string) pages.Row {
	action := pages.ActionPaid
	switch {
	case tx.Kind == KindRequested && tx.Status == StatusAccepted:
		action = pages.ActionCharged
	case tx.Kind == KindRequested:
		action = pages.ActionRequested
	}
	amount := tx.Amount
	if viewer == tx.Payer() {
		amount = -amount
	}
	return pages.Row{
		Sender:   fullName(sender),
		Receiver: fullName(receiver),
		Action:   action,
		Amount:   amount,
		Note:     tx.Note,
	}
}

func (o *Orchestrator) verifyList(ctx context.Context, s *session.Session, want pages.Row) error {
	if err := s.Transactions.Open(ctx, pages.TabMine); err != nil {
		return err
	}
	if err := s.Transactions.VerifyLatest(ctx, want); err != nil {
		return err
	}
	o.record(s.Name(), "verify_list", map[string]any{"action": want.Action, "amount": want.Amount})
	return nil
}

// Pay has from pay to amount with note. from's balance must drop by amount
// and to's rise by amount, both read after re-authentication.
func (o *Orchestrator) Pay(ctx context.Context, from, to *session.Session, amount int64, note string) (Outcome, error) {
	return o.step(ctx, EventPay, from.Name(), func(ctx context.Context, out *Outcome) error {
		if err := validate(amount, note); err != nil {
			return err
		}
		tx := Transaction{Kind: KindPaid, Status: StatusNone, Initiator: from.Name(), Counterparty: to.Name(), Amount: amount, Note: note}
		next, err := Transition(tx.Status, EventPay)
		if err != nil {
			return err
		}
		out.Transaction = tx

		toBefore, err := o.snapshot(ctx, out, to, "pay:before")
		if err != nil {
			return err
		}
		fromBefore, err := o.snapshot(ctx, out, from, "pay:before")
		if err != nil {
			return err
		}

		if err := from.NewTransaction.Pay(ctx, to.Actor().Identity(), amount, note); err != nil {
			return err
		}
		tx.Status = next
		out.Transaction = tx
		o.record(from.Name(), "pay", map[string]any{"to": to.Name(), "amount": amount, "note": note})

		if err := o.verifyList(ctx, from, row(tx, from, to, from.Name())); err != nil {
			return err
		}

		fromAfter, err := o.snapshot(ctx, out, from, "pay:after")
		if err != nil {
			return err
		}
		if err := o.check(out, invariant.Expectation{Check: invariant.CheckAfterPaying, Amount: amount}, fromBefore, fromAfter); err != nil {
			return err
		}
		toAfter, err := o.snapshot(ctx, out, to, "pay:after")
		if err != nil {
			return err
		}
		if err := o.check(out, invariant.Expectation{Check: invariant.CheckAfterReceiving, Amount: amount}, toBefore, toAfter); err != nil {
			return err
		}
		if err := o.verifyList(ctx, to, row(tx, from, to, to.Name())); err != nil {
			return err
		}
		return o.stage.Park(ctx)
	})
}

// Request has from ask to for amount. Nobody's balance may move, and to
// must be offered accept and reject on the detail screen.
func (o *Orchestrator) Request(ctx context.Context, from, to *session.Session, amount int64, note string) (Outcome, error) {
	return o.step(ctx, EventRequest, from.Name(), func(ctx context.Context, out *Outcome) error {
		if err := validate(amount, note); err != nil {
			return err
		}
		tx := Transaction{Kind: KindRequested, Status: StatusNone, Initiator: from.Name(), Counterparty: to.Name(), Amount: amount, Note: note}
		next, err := Transition(tx.Status, EventRequest)
		if err != nil {
			return err
		}
		out.Transaction = tx

		toBefore, err := o.snapshot(ctx, out, to, "request:before")
		if err != nil {
			return err
		}
		fromBefore, err := o.snapshot(ctx, out, from, "request:before")
		if err != nil {
			return err
		}

		if err := from.NewTransaction.Request(ctx, to.Actor().Identity(), amount, note); err != nil {
			return err
		}
		tx.Status = next
		out.Transaction = tx
		o.record(from.Name(), "request", map[string]any{"from": to.Name(), "amount": amount, "note": note})

		if err := o.verifyList(ctx, from, row(tx, from, to, from.Name())); err != nil {
			return err
		}

		fromAfter, err := o.snapshot(ctx, out, from, "request:after")
		if err != nil {
			return err
		}
		if err := o.check(out, invariant.Expectation{Check: invariant.CheckUnchanged}, fromBefore, fromAfter); err != nil {
			return err
		}
		toAfter, err := o.snapshot(ctx, out, to, "request:after")
		if err != nil {
			return err
		}
		if err := o.check(out, invariant.Expectation{Check: invariant.CheckUnchanged}, toBefore, toAfter); err != nil {
			return err
		}

		if err := o.openPending(ctx, to, row(tx, from, to, to.Name())); err != nil {
			return err
		}
		return o.stage.Park(ctx)
	})
}

// openPending finds the pending request on the payer's feed and checks the
// detail screen offers both actions.
func (o *Orchestrator) openPending(ctx context.Context, payer *session.Session, want pages.Row) error {
	if err := o.verifyList(ctx, payer, want); err != nil {
		return err
	}
	if err := payer.Transactions.OpenLatest(ctx); err != nil {
		return err
	}
	if err := payer.Detail.Verify(ctx, pages.Detail{Row: want, CanAccept: true, CanReject: true}); err != nil {
		return err
	}
	o.record(payer.Name(), "verify_detail", map[string]any{"can_accept": true, "can_reject": true})
	return nil
}

// Accept has payer accept the pending request tx from requester. payer is
// debited and requester credited, observed after re-authentication.
func (o *Orchestrator) Accept(ctx context.Context, tx *Transaction, payer, requester *session.Session) (Outcome, error) {
	return o.resolve(ctx, EventAccept, tx, payer, requester)
}

// Reject has payer reject the pending request tx from requester. No
// balance may move; the requester's credit is a catalogued deviation.
func (o *Orchestrator) Reject(ctx context.Context, tx *Transaction, payer, requester *session.Session) (Outcome, error) {
	return o.resolve(ctx, EventReject, tx, payer, requester)
}

func (o *Orchestrator) resolve(ctx context.Context, ev Event, tx *Transaction, payer, requester *session.Session) (Outcome, error) {
	return o.step(ctx, ev, payer.Name(), func(ctx context.Context, out *Outcome) error {
		out.Transaction = *tx
		if tx.Kind != KindRequested || payer.Name() != tx.Payer() || requester.Name() != tx.Payee() {
			return fmt.Errorf("%s by %s for %s on %s: %w", ev, payer.Name(), requester.Name(), tx, ErrWrongParty)
		}
		next, err := Transition(tx.Status, ev)
		if err != nil {
			return err
		}

		requesterBefore, err := o.snapshot(ctx, out, requester, string(ev)+":before")
		if err != nil {
			return err
		}
		payerBefore, err := o.snapshot(ctx, out, payer, string(ev)+":before")
		if err != nil {
			return err
		}

		if err := o.openPending(ctx, payer, row(*tx, requester, payer, payer.Name())); err != nil {
			return err
		}
		act := payer.Detail.Accept
		if ev == EventReject {
			act = payer.Detail.Reject
		}
		if err := act(ctx); err != nil {
			return err
		}
		tx.Status = next
		out.Transaction = *tx
		o.record(payer.Name(), string(ev), map[string]any{"requester": requester.Name(), "amount": tx.Amount})

		if err := payer.Detail.Verify(ctx, pages.Detail{Row: row(*tx, requester, payer, payer.Name())}); err != nil {
			return err
		}
		o.record(payer.Name(), "verify_detail", map[string]any{"can_accept": false, "can_reject": false})

		// The display is not refreshed by the action itself.
		shown, err := payer.SideNav.Balance(ctx)
		if err != nil {
			return err
		}
		o.record(payer.Name(), "balance_display", map[string]any{"balance": shown, "stale": shown == payerBefore.Balance})

		payerAfter, err := o.snapshot(ctx, out, payer, string(ev)+":after")
		if err != nil {
			return err
		}
		requesterAfter, err := o.snapshot(ctx, out, requester, string(ev)+":after")
		if err != nil {
			return err
		}

		payerExp := invariant.Expectation{Check: invariant.CheckAfterPaying, Amount: tx.Amount}
		requesterExp := invariant.Expectation{Check: invariant.CheckAfterReceiving, Amount: tx.Amount}
		if ev == EventReject {
			deviation := invariant.RejectCreditsRequester
			payerExp = invariant.Expectation{Check: invariant.CheckUnchanged, Amount: tx.Amount}
			requesterExp = invariant.Expectation{Check: invariant.CheckUnchanged, Amount: tx.Amount, Deviation: &deviation}
		}
		if err := o.check(out, payerExp, payerBefore, payerAfter); err != nil {
			return err
		}
		if err := o.check(out, requesterExp, requesterBefore, requesterAfter); err != nil {
			return err
		}

		if err := o.verifyList(ctx, requester, row(*tx, requester, payer, requester.Name())); err != nil {
			return err
		}
		return o.stage.Park(ctx)
	})
}
