package actor

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// Case selects the letter case of generated strings.
type Case int

const (
	Lower Case = iota
	Upper
	Mixed
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// bankNames are plausible bank names for onboarding forms.
var bankNames = []string{
	"First Harbor Bank",
	"Northwind Credit Union",
	"Evergreen Savings",
	"Summit Trust",
	"Riverside Federal",
	"Cobalt National",
}

// Generator produces random form data. The zero value is not usable; use
// NewGenerator.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator seeds a generator. Equal seeds produce equal sequences,
// which the simulator tests rely on.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// String returns n random letters in the requested case.
func (g *Generator) String(n int, c Case) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		ch := letters[g.rnd.IntN(len(letters))]
		switch c {
		case Upper:
			ch -= 'a' - 'A'
		case Mixed:
			if g.rnd.IntN(2) == 1 {
				ch -= 'a' - 'A'
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// Digits returns n random decimal digits. The first digit is never zero.
func (g *Generator) Digits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d := g.rnd.IntN(10)
		if i == 0 && d == 0 {
			d = 1 + g.rnd.IntN(9)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// Phone returns a ten-digit phone number.
func (g *Generator) Phone() string {
	return g.Digits(10)
}

// Bank returns random bank facts that pass the application's form
// validation: a 9-digit routing number and a 9-12 digit account number.
func (g *Generator) Bank() Bank {
	return Bank{
		BankName:      bankNames[g.rnd.IntN(len(bankNames))],
		RoutingNumber: g.Digits(9),
		AccountNumber: g.Digits(9 + g.rnd.IntN(4)),
	}
}

// UniqueSuffix returns a short suffix that makes usernames collision-free
// across parallel runs sharing one backend.
func UniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
