// Package campaign composes personalized messages and runs campaign dispatch.
package campaign

import (
	"strconv"
	"strings"

	"github.com/rafaeljc/herald/internal/store"
)

// Template placeholders. Anything else in braces is left as written.
const (
	PlaceholderName     = "{name}"
	PlaceholderDiscount = "{discount}"
)

// Template is the operator-authored subject and body.
type Template struct {
	Subject string
	Body    string
}

// PersonalizedMessage is one rendered message for one customer.
type PersonalizedMessage struct {
	CustomerID         string
	CustomerName       string
	CustomerEmail      string
	Subject            string
	Body               string
	DiscountPercentage float64
}

// FormatDiscount renders a discount the way templates show it: 15, 12.5, 0.25.
func FormatDiscount(discount float64) string {
	return strconv.FormatFloat(discount, 'f', -1, 64)
}

// Personalize substitutes every placeholder occurrence in a single pass, so
// placeholder text inside the customer's name is not expanded again.
func Personalize(text, name string, discount float64) string {
	return strings.NewReplacer(
		PlaceholderName, name,
		PlaceholderDiscount, FormatDiscount(discount),
	).Replace(text)
}

// Compose renders one message per customer, in input order. Duplicates are kept.
func Compose(customers []*store.Customer, tmpl Template, discount float64) []PersonalizedMessage {
	out := make([]PersonalizedMessage, 0, len(customers))
	for _, c := range customers {
		out = append(out, PersonalizedMessage{
			CustomerID:         c.ID,
			CustomerName:       c.Name,
			CustomerEmail:      c.Email,
			Subject:            Personalize(tmpl.Subject, c.Name, discount),
			Body:               Personalize(tmpl.Body, c.Name, discount),
			DiscountPercentage: discount,
		})
	}
	return out
}
