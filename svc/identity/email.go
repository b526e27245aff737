package identity

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/dmitrymomot/reviewfunnel/pkg/email"
)

// NormalizeEmail trims and case-folds an address so lookups match however
// Stripe or the signup form capitalized it.
func NormalizeEmail(s string) (string, error) {
	s = cases.Fold().String(strings.TrimSpace(s))
	if !email.ValidAddress(s) {
		return "", ErrInvalidEmail
	}
	return s, nil
}
