package pages

import (
	"context"
	"fmt"
)

// Auth drives the sign-in screen.
type Auth struct {
	driver
}

// NewAuth binds a sign-in driver.
func NewAuth(b Binding) *Auth {
	return &Auth{driver: newDriver(b)}
}

// Launch opens the sign-in screen.
func (a *Auth) Launch(ctx context.Context) error {
	if err := a.ui.Navigate(ctx, a.url(PathSignin)); err != nil {
		return err
	}
	if err := a.ui.ExpectTitle(ctx, AppTitle); err != nil {
		return err
	}
	return a.ui.ExpectURLContains(ctx, PathSignin)
}

// Login signs in with the bound actor's credentials and waits for the
// signed-in side navigation.
func (a *Auth) Login(ctx context.Context) error {
	id := a.actor.Identity()
	if err := a.submit(ctx, id.Username, id.Password); err != nil {
		return err
	}
	if err := a.ui.ExpectText(ctx, SideNavUsername, "@"+id.Username); err != nil {
		return fmt.Errorf("login %s: %w", a.actor.Label(), err)
	}
	return nil
}

// LoginRejected submits the given credentials and expects the sign-in
// error. Used for wrong-password and case-sensitivity checks.
func (a *Auth) LoginRejected(ctx context.Context, username, password string) error {
	if err := a.submit(ctx, username, password); err != nil {
		return err
	}
	if err := a.ui.ExpectText(ctx, SigninError, SigninErrorText); err != nil {
		return err
	}
	return a.ui.ExpectURLContains(ctx, PathSignin)
}

func (a *Auth) submit(ctx context.Context, username, password string) error {
	if err := a.ui.FillAndVerify(ctx, SigninUsername, username); err != nil {
		return err
	}
	if err := a.ui.FillAndVerify(ctx, SigninPassword, password); err != nil {
		return err
	}
	return a.ui.Click(ctx, SigninSubmit)
}

// VerifyFieldValidation checks the inline messages for an empty username
// and a too-short password, and that submit stays disabled.
func (a *Auth) VerifyFieldValidation(ctx context.Context) error {
	if err := a.ui.Fill(ctx, SigninUsername, ""); err != nil {
		return err
	}
	if err := a.ui.Blur(ctx, SigninUsername); err != nil {
		return err
	}
	if err := a.ui.ExpectText(ctx, SigninUsernameHelper, MsgUsernameRequired); err != nil {
		return err
	}
	if err := a.ui.Fill(ctx, SigninPassword, "abc"); err != nil {
		return err
	}
	if err := a.ui.Blur(ctx, SigninPassword); err != nil {
		return err
	}
	if err := a.ui.ExpectText(ctx, SigninPasswordHelper, MsgPasswordShort); err != nil {
		return err
	}
	return a.ui.ExpectDisabled(ctx, SigninSubmit)
}
