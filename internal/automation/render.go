package automation

import (
	"strings"

	"github.com/luminix/crm/internal/crm"
)

// DefaultRecipientName is the fallback greeting when a lead record has no
// usable name. The platform's audience is Hebrew-speaking.
const DefaultRecipientName = "לקוח יקר"

// RenderPlaceholders substitutes {name}, {firstName}, {business}, {email}
// and {phone} tokens with lead fields. Missing fields render as an empty
// string, except names which fall back to a neutral greeting; rendering
// never fails.
func RenderPlaceholders(text string, l *crm.Lead) string {
	name := strings.TrimSpace(l.FullName)
	if name == "" {
		name = DefaultRecipientName
	}
	first := strings.TrimSpace(l.FirstName)
	if first == "" {
		if fields := strings.Fields(l.FullName); len(fields) > 0 {
			first = fields[0]
		} else {
			first = DefaultRecipientName
		}
	}
	return strings.NewReplacer(
		"{name}", name,
		"{firstName}", first,
		"{business}", l.BusinessName,
		"{email}", l.Email,
		"{phone}", l.Phone,
	).Replace(text)
}
