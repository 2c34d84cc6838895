package config

import (
	"fmt"
	"strings"
)

// Credentials maps usernames to passwords. It is built once and never mutated.
type Credentials map[string]string

// ParseCredentials parses "user1:pass1,user2:pass2". An empty string yields an
// empty table, which disables authentication.
func ParseCredentials(s string) (Credentials, error) {
	creds := Credentials{}
	if strings.TrimSpace(s) == "" {
		return creds, nil
	}
	for _, entry := range strings.Split(s, ",") {
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid api_auth entry %q, want user:password", entry)
		}
		creds[user] = pass
	}
	return creds, nil
}

func (c Credentials) Enabled() bool {
	return len(c) > 0
}
