package pages

import (
	"context"
	"strconv"

	"github.com/roach88/rwaverify/internal/actor"
)

// NewTransaction drives the create-transaction flow: pick a contact, enter
// amount and note, then pay or request.
type NewTransaction struct {
	driver
}

// NewNewTransaction binds a create-transaction driver.
func NewNewTransaction(b Binding) *NewTransaction {
	return &NewTransaction{driver: newDriver(b)}
}

// Open starts a new transaction from the top bar.
func (t *NewTransaction) Open(ctx context.Context) error {
	if err := t.ui.Click(ctx, NewTransactionButton); err != nil {
		return err
	}
	return t.ui.ExpectURLContains(ctx, PathNewTransaction)
}

// SelectContact searches for the counterparty by username, picks it and
// verifies the selected user's details.
func (t *NewTransaction) SelectContact(ctx context.Context, counterparty actor.Identity) error {
	if err := t.ui.FillAndVerify(ctx, UserSearchInput, counterparty.Username); err != nil {
		return err
	}
	if err := t.ui.ExpectCount(ctx, UserListItem, 1); err != nil {
		return err
	}
	if err := t.ui.Click(ctx, UserListItem); err != nil {
		return err
	}
	if err := t.ui.ExpectText(ctx, SelectedUserName, counterparty.FullName()); err != nil {
		return err
	}
	return t.ui.ExpectText(ctx, SelectedUserUsername, "@"+counterparty.Username)
}

// VerifyNoUsersFound searches for query and expects an empty result.
func (t *NewTransaction) VerifyNoUsersFound(ctx context.Context, query string) error {
	if err := t.ui.FillAndVerify(ctx, UserSearchInput, query); err != nil {
		return err
	}
	if err := t.ui.ExpectCount(ctx, UserListItem, 0); err != nil {
		return err
	}
	return t.ui.ExpectTextContains(ctx, EmptyListHeader, NoUsersFoundText)
}

// VerifyActionsDisabled expects both submit buttons disabled, as they are
// until amount and note are filled.
func (t *NewTransaction) VerifyActionsDisabled(ctx context.Context) error {
	if err := t.ui.ExpectDisabled(ctx, SubmitPayment); err != nil {
		return err
	}
	return t.ui.ExpectDisabled(ctx, SubmitRequest)
}

// EnterDetails fills amount and note.
func (t *NewTransaction) EnterDetails(ctx context.Context, amount int64, note string) error {
	if err := t.ui.FillAndVerify(ctx, AmountInput, strconv.FormatInt(amount, 10)); err != nil {
		return err
	}
	return t.ui.FillAndVerify(ctx, NoteInput, note)
}

// Pay sends amount to the counterparty.
func (t *NewTransaction) Pay(ctx context.Context, counterparty actor.Identity, amount int64, note string) error {
	return t.create(ctx, SubmitPayment, counterparty, amount, note)
}

// Request asks the counterparty for amount.
func (t *NewTransaction) Request(ctx context.Context, counterparty actor.Identity, amount int64, note string) error {
	return t.create(ctx, SubmitRequest, counterparty, amount, note)
}

func (t *NewTransaction) create(ctx context.Context, submit string, counterparty actor.Identity, amount int64, note string) error {
	if err := t.Open(ctx); err != nil {
		return err
	}
	if err := t.SelectContact(ctx, counterparty); err != nil {
		return err
	}
	if err := t.VerifyActionsDisabled(ctx); err != nil {
		return err
	}
	if err := t.EnterDetails(ctx, amount, note); err != nil {
		return err
	}
	if err := t.ui.Click(ctx, submit); err != nil {
		return err
	}
	if err := t.ui.ExpectText(ctx, AlertSuccess, SubmittedText); err != nil {
		return err
	}
	t.actor.RecordTransaction(amount, note)

	if err := t.ui.Click(ctx, ReturnToTransactions); err != nil {
		return err
	}
	return t.ui.ExpectVisible(ctx, TransactionTabs)
}
