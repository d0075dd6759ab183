package pages

import (
	"context"

	"github.com/roach88/rwaverify/internal/actor"
)

// Onboarding drives the first-login dialog: get started, bank account,
// finished.
type Onboarding struct {
	driver
}

// NewOnboarding binds an onboarding driver.
func NewOnboarding(b Binding) *Onboarding {
	return &Onboarding{driver: newDriver(b)}
}

// VerifyGetStarted expects the first dialog step.
func (o *Onboarding) VerifyGetStarted(ctx context.Context) error {
	if err := o.ui.ExpectText(ctx, OnboardingTitle, OnboardingGetStarted); err != nil {
		return err
	}
	return o.ui.ExpectVisible(ctx, OnboardingContent)
}

// Next advances the dialog.
func (o *Onboarding) Next(ctx context.Context) error {
	return o.ui.Click(ctx, OnboardingNext)
}

// SubmitBank fills the bank step and records the bank facts on the actor.
func (o *Onboarding) SubmitBank(ctx context.Context, bank actor.Bank) error {
	if err := o.ui.ExpectText(ctx, OnboardingTitle, OnboardingCreateBank); err != nil {
		return err
	}
	if err := fillBankForm(ctx, o.ui, bank); err != nil {
		return err
	}
	if err := o.ui.Click(ctx, BankSubmit); err != nil {
		return err
	}
	o.actor.SetBank(bank)
	return nil
}

// Finish expects the final step and closes the dialog.
func (o *Onboarding) Finish(ctx context.Context) error {
	if err := o.ui.ExpectText(ctx, OnboardingTitle, OnboardingFinished); err != nil {
		return err
	}
	if err := o.Next(ctx); err != nil {
		return err
	}
	return o.ui.ExpectCount(ctx, OnboardingTitle, 0)
}

// Complete runs the whole dialog.
func (o *Onboarding) Complete(ctx context.Context, bank actor.Bank) error {
	if err := o.VerifyGetStarted(ctx); err != nil {
		return err
	}
	if err := o.Next(ctx); err != nil {
		return err
	}
	if err := o.SubmitBank(ctx, bank); err != nil {
		return err
	}
	return o.Finish(ctx)
}
