package identity

import (
	"net/mail"
	"strings"
)

// Directory resolves committer identities from a static user table, falling
// back to identities that are already addresses and then to a default mail
// domain.
type Directory struct {
	users         map[string]string
	defaultDomain string
}

// NewDirectory creates a Directory. Keys of users are matched
// case-insensitively. defaultDomain may be empty.
func NewDirectory(users map[string]string, defaultDomain string) *Directory {
	normalized := make(map[string]string, len(users))
	for id, addr := range users {
		normalized[strings.ToLower(strings.TrimSpace(id))] = strings.TrimSpace(addr)
	}
	return &Directory{
		users:         normalized,
		defaultDomain: strings.TrimPrefix(strings.TrimSpace(defaultDomain), "@"),
	}
}

// ResolveAddress returns the address for identity and whether one was found.
func (d *Directory) ResolveAddress(identity string) (string, bool) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return "", false
	}
	if addr, ok := d.users[strings.ToLower(id)]; ok {
		return normalize(addr)
	}
	if strings.Contains(id, "@") {
		return normalize(id)
	}
	if d.defaultDomain == "" || strings.ContainsAny(id, " \t") {
		return "", false
	}
	return normalize(id + "@" + d.defaultDomain)
}

// normalize validates addr and strips any display name.
func normalize(addr string) (string, bool) {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", false
	}
	return parsed.Address, true
}
