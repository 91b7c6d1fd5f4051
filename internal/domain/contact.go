package domain

import "strings"

const DefaultCountryPrefix = "+91"

// InternationalContact returns contact in international format. Numbers
// that already start with "+" are returned unchanged; others get prefix.
func InternationalContact(contact string, prefix string) string {
	contact = strings.Join(strings.Fields(contact), "")
	if contact == "" || strings.HasPrefix(contact, "+") {
		return contact
	}
	if prefix == "" {
		prefix = DefaultCountryPrefix
	}
	return prefix + contact
}
