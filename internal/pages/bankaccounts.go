package pages

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
)

func fillBankForm(ctx context.Context, ui *browser.UI, bank actor.Bank) error {
	if err := ui.FillAndVerify(ctx, BankNameInput, bank.BankName); err != nil {
		return err
	}
	if err := ui.FillAndVerify(ctx, BankRoutingInput, bank.RoutingNumber); err != nil {
		return err
	}
	return ui.FillAndVerify(ctx, BankAccountInput, bank.AccountNumber)
}

// BankAccounts drives the bank accounts section.
type BankAccounts struct {
	driver
}

// NewBankAccounts binds a bank accounts driver.
func NewBankAccounts(b Binding) *BankAccounts {
	return &BankAccounts{driver: newDriver(b)}
}

// Open goes to the section through the side navigation.
func (b *BankAccounts) Open(ctx context.Context) error {
	if err := b.ui.Click(ctx, SideNavBankAccounts); err != nil {
		return err
	}
	if err := b.ui.ExpectURLContains(ctx, PathBankAccounts); err != nil {
		return err
	}
	return b.ui.ExpectText(ctx, ModuleTitle, BankAccountsTitle)
}

// OpenForm opens the new-account form.
func (b *BankAccounts) OpenForm(ctx context.Context) error {
	if err := b.ui.Click(ctx, BankNew); err != nil {
		return err
	}
	return b.ui.ExpectURLContains(ctx, PathNewBankAccount)
}

// Create adds a bank account and expects it in the list. The new account
// becomes the actor's recorded bank.
func (b *BankAccounts) Create(ctx context.Context, bank actor.Bank) error {
	if err := b.OpenForm(ctx); err != nil {
		return err
	}
	if err := fillBankForm(ctx, b.ui, bank); err != nil {
		return err
	}
	if err := b.ui.Click(ctx, BankSubmit); err != nil {
		return err
	}
	if err := b.ui.ExpectURLContains(ctx, PathBankAccounts); err != nil {
		return err
	}
	if err := b.VerifyListed(ctx, bank.BankName); err != nil {
		return err
	}
	b.actor.SetBank(bank)
	return nil
}

// Listed returns the bank names shown in the list.
func (b *BankAccounts) Listed(ctx context.Context) ([]string, error) {
	return b.ui.ReadTexts(ctx, BankListItem)
}

// VerifyListed waits until name appears in the list.
func (b *BankAccounts) VerifyListed(ctx context.Context, name string) error {
	return b.ui.Until(ctx, fmt.Sprintf("bank account %q listed", name), func(ctx context.Context) (bool, string, error) {
		names, err := b.Listed(ctx)
		return slices.Contains(names, name), fmt.Sprint(names), err
	})
}

// fieldCase is one invalid input and the message it must produce.
type fieldCase struct {
	input, helper, value, message string
}

var bankValidationCases = []fieldCase{
	{BankNameInput, BankNameHelper, "", MsgBankNameRequired},
	{BankNameInput, BankNameHelper, "abc", MsgBankNameShort},
	{BankRoutingInput, BankRoutingHelper, "", MsgRoutingRequired},
	{BankRoutingInput, BankRoutingHelper, "12345", MsgRoutingInvalid},
	{BankAccountInput, BankAccountHelper, "", MsgAccountRequired},
	{BankAccountInput, BankAccountHelper, "12345", MsgAccountShort},
	{BankAccountInput, BankAccountHelper, "1234567890123", MsgAccountLong},
}

// VerifyFormValidation walks the invalid inputs of the open bank form and
// checks each inline message and that submit stays disabled.
func (b *BankAccounts) VerifyFormValidation(ctx context.Context) error {
	for _, c := range bankValidationCases {
		if err := b.ui.Fill(ctx, c.input, c.value); err != nil {
			return err
		}
		if err := b.ui.Blur(ctx, c.input); err != nil {
			return err
		}
		if err := b.ui.ExpectText(ctx, c.helper, c.message); err != nil {
			return fmt.Errorf("%s=%q: %w", c.input, c.value, err)
		}
		if err := b.ui.ExpectDisabled(ctx, BankSubmit); err != nil {
			return err
		}
	}
	return nil
}
