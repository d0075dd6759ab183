package pages

import (
	"context"
	"fmt"
)

// SideNav drives the signed-in side navigation.
type SideNav struct {
	driver
}

// NewSideNav binds a side navigation driver.
func NewSideNav(b Binding) *SideNav {
	return &SideNav{driver: newDriver(b)}
}

// ExpectSignedIn checks the name and username shown for the actor.
func (n *SideNav) ExpectSignedIn(ctx context.Context) error {
	id := n.actor.Identity()
	if err := n.ui.ExpectText(ctx, SideNavFullName, id.FullName()); err != nil {
		return err
	}
	return n.ui.ExpectText(ctx, SideNavUsername, "@"+id.Username)
}

// Balance reads the displayed balance and records it on the actor. The
// display is only fresh right after sign-in.
func (n *SideNav) Balance(ctx context.Context) (int64, error) {
	bal, err := n.ui.ReadAmount(ctx, SideNavBalance)
	if err != nil {
		return 0, fmt.Errorf("%s balance: %w", n.actor.Label(), err)
	}
	n.actor.RecordBalance(bal)
	return bal, nil
}

// Home returns to the transaction feed.
func (n *SideNav) Home(ctx context.Context) error {
	if err := n.ui.Click(ctx, SideNavHome); err != nil {
		return err
	}
	return n.ui.ExpectVisible(ctx, TransactionTabs)
}

// Notifications opens the notifications section.
func (n *SideNav) Notifications(ctx context.Context) error {
	if err := n.ui.Click(ctx, SideNavNotifications); err != nil {
		return err
	}
	if err := n.ui.ExpectURLContains(ctx, PathNotifications); err != nil {
		return err
	}
	return n.ui.ExpectText(ctx, ModuleTitle, NotificationsTitle)
}

// Logout signs out and waits for the sign-in screen.
func (n *SideNav) Logout(ctx context.Context) error {
	if err := n.ui.Click(ctx, SideNavSignout); err != nil {
		return err
	}
	return n.ui.ExpectURLContains(ctx, PathSignin)
}
