package subscriptions

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

var validate = validator.New()

// Customer is the payer as supplied by the caller.
type Customer struct {
	Name  string
	Email string
}

// NormalizeEmail lowercases the address and strips every whitespace rune.
func NormalizeEmail(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
}

// BuildSubscriber returns nil when the email is unusable; the processor then
// collects payer details on its own approval page. A name object is attached
// only when the full name has at least two tokens.
func BuildSubscriber(c Customer) *paypal.Subscriber {
	email := NormalizeEmail(c.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil
	}
	sub := &paypal.Subscriber{EmailAddress: email}
	tokens := strings.Fields(c.Name)
	if len(tokens) >= 2 {
		sub.Name = &paypal.Name{
			GivenName: tokens[0],
			Surname:   strings.Join(tokens[1:], " "),
		}
	}
	return sub
}
