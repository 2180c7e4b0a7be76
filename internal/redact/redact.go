package redact

import (
	"strings"
)

// Redactor replaces configured secrets in strings before they reach logs
// or terminal output.
type Redactor struct {
	secrets []string
}

func NewRedactor() *Redactor {
	return &Redactor{}
}

func (r *Redactor) AddSecrets(secrets []string) {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		r.secrets = append(r.secrets, s)
	}
}

func (r *Redactor) Redact(input string) string {
	out := input
	for _, secret := range r.secrets {
		if secret == "" {
			continue
		}
		out = strings.ReplaceAll(out, secret, "[REDACTED]")
	}
	return out
}

// Mask returns a credential with everything but the last four characters
// replaced by '*'. Values of four characters or fewer are fully masked.
// Empty input stays empty so reports can show "(empty)" themselves.
func Mask(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	const keep = 4
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}
