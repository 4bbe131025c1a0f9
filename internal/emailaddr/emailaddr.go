// Package emailaddr validates candidate contact emails. Two rules apply
// everywhere an email is accepted: the domain must be on the institution's
// allow-list, and role addresses (info@, admin@, ...) never count as a
// person's contact.
package emailaddr

import (
	"regexp"
	"strings"
)

// Re matches an email-shaped substring in free text.
var Re = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// genericLocals are role-address local parts that never identify a person.
// Departmental mailboxes named after whole disciplines count too.
var genericLocals = []string{
	"info", "contact", "admin", "office",
	"department", "dept", "general", "inquiries",
	"support", "help", "webmaster", "web",
	"communications", "media", "press", "news",
	"events", "editor", "subscribe", "noreply",
	"hr", "careers", "admissions", "registrar",
	"alumni", "development", "giving",
	"program", "programs", "course", "courses",
	"statistics", "math", "chemistry", "physics",
	"biology", "economics", "psychology", "sociology",
	"lab", "research", "faculty", "staff",
	"graduate", "undergraduate",
}

// Local returns the lowercased local part of an email.
func Local(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// Domain returns the lowercased domain part of an email, or "".
func Domain(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}

// OnAllowedDomain reports whether the email's domain equals one of the
// allowed domains or is a subdomain of one.
func OnAllowedDomain(email string, domains []string) bool {
	domain := Domain(email)
	if domain == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(d)
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// IsGeneric reports whether the email is a role address rather than a
// person's own mailbox.
func IsGeneric(email string) bool {
	local := Local(email)
	for _, g := range genericLocals {
		if local == g {
			return true
		}
	}
	return false
}

// Clean lowercases an address and strips a mailto: prefix and any query
// string (?subject=...).
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "mailto:")
	if q := strings.Index(raw, "?"); q >= 0 {
		raw = raw[:q]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// Acceptable combines the two hard rules: allowed domain, not a role address.
func Acceptable(email string, domains []string) bool {
	return email != "" &&
		strings.Count(email, "@") == 1 &&
		OnAllowedDomain(email, domains) &&
		!IsGeneric(email)
}
