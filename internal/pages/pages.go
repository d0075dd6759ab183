// Package pages contains one UI driver per application section.
//
// Every driver is bound to exactly one page (through a browser.UI) and one
// actor.State, both injected through a Binding. Drivers read identity and
// bank facts from their actor and write back what they observe; they never
// reach another actor's state.
package pages

import (
	"strings"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
)

// Binding is what every driver is constructed from.
type Binding struct {
	UI      *browser.UI
	Actor   *actor.State
	BaseURL string
}

type driver struct {
	ui      *browser.UI
	actor   *actor.State
	baseURL string
}

func newDriver(b Binding) driver {
	return driver{ui: b.UI, actor: b.Actor, baseURL: strings.TrimRight(b.BaseURL, "/")}
}

func (d driver) url(path string) string {
	return d.baseURL + path
}

// Actor returns the bound actor.
func (d driver) Actor() *actor.State {
	return d.actor
}
