package pages

import (
	"context"

	"github.com/roach88/rwaverify/internal/actor"
)

// Registration drives the sign-up screen.
type Registration struct {
	driver
}

// NewRegistration binds a sign-up driver.
func NewRegistration(b Binding) *Registration {
	return &Registration{driver: newDriver(b)}
}

// Open navigates from sign-in to sign-up.
func (r *Registration) Open(ctx context.Context) error {
	if err := r.ui.Navigate(ctx, r.url(PathSignin)); err != nil {
		return err
	}
	if err := r.ui.Click(ctx, SignupLink); err != nil {
		return err
	}
	return r.ui.ExpectText(ctx, SignupTitle, SignupTitleText)
}

// Register fills and submits the form with id and records id on the
// bound actor. The server id is not visible in the UI, so the actor is
// marked registered without one.
func (r *Registration) Register(ctx context.Context, id actor.Identity) error {
	if err := r.actor.SetIdentity(id); err != nil {
		return err
	}
	fields := []struct{ sel, value string }{
		{SignupFirstName, id.FirstName},
		{SignupLastName, id.LastName},
		{SignupUsername, id.Username},
		{SignupPassword, id.Password},
		{SignupConfirmPassword, id.Password},
	}
	for _, f := range fields {
		if err := r.ui.FillAndVerify(ctx, f.sel, f.value); err != nil {
			return err
		}
	}
	if err := r.ui.Click(ctx, SignupSubmit); err != nil {
		return err
	}
	if err := r.ui.ExpectURLContains(ctx, PathSignin); err != nil {
		return err
	}
	r.actor.MarkRegistered("")
	return nil
}
