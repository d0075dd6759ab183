package pages

import (
	"context"

	"github.com/roach88/rwaverify/internal/actor"
)

// Settings drives the user settings form.
type Settings struct {
	driver
}

// NewSettings binds a settings driver.
func NewSettings(b Binding) *Settings {
	return &Settings{driver: newDriver(b)}
}

// Open goes to settings through the side navigation.
func (s *Settings) Open(ctx context.Context) error {
	if err := s.ui.Click(ctx, SideNavSettings); err != nil {
		return err
	}
	if err := s.ui.ExpectURLContains(ctx, PathSettings); err != nil {
		return err
	}
	return s.ui.ExpectText(ctx, ModuleTitle, SettingsTitleText)
}

// VerifyDetails checks that the form shows the actor's current profile.
func (s *Settings) VerifyDetails(ctx context.Context) error {
	id := s.actor.Identity()
	for sel, want := range map[string]string{
		SettingsFirstName: id.FirstName,
		SettingsLastName:  id.LastName,
		SettingsEmail:     id.Email,
		SettingsPhone:     id.Phone,
	} {
		if err := s.ui.ExpectValue(ctx, sel, want); err != nil {
			return err
		}
	}
	return nil
}

// Edit submits the given profile changes, applies them to the actor and
// verifies the form and side navigation reflect them.
func (s *Settings) Edit(ctx context.Context, edit actor.ProfileEdit) error {
	fields := []struct {
		sel   string
		value *string
	}{
		{SettingsFirstName, edit.FirstName},
		{SettingsLastName, edit.LastName},
		{SettingsEmail, edit.Email},
		{SettingsPhone, edit.Phone},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := s.ui.FillAndVerify(ctx, f.sel, *f.value); err != nil {
			return err
		}
	}
	if err := s.ui.Click(ctx, SettingsSubmit); err != nil {
		return err
	}
	s.actor.EditProfile(edit)

	if err := s.VerifyDetails(ctx); err != nil {
		return err
	}
	return s.ui.ExpectText(ctx, SideNavFullName, s.actor.Identity().FullName())
}
