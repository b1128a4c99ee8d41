package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Redactor removes secrets and tracking identifiers from log output. Pasted
// share links carry per-user tracking parameters (si, pp, feature), and report
// tokens are bearer credentials.
type Redactor struct {
	sensitiveKeys []string
	patterns      []*regexp.Regexp
	replacements  []string
}

var (
	jwtPattern      = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	trackingPattern = regexp.MustCompile(`([?&](?:si|pp|igsh|fbclid)=)[^&\s#"]+`)
)

// DefaultRedactor returns the redactor used when none is configured
func DefaultRedactor() *Redactor {
	return &Redactor{
		sensitiveKeys: []string{"password", "secret", "token", "authorization", "api_key"},
		patterns:      []*regexp.Regexp{jwtPattern, trackingPattern},
		replacements:  []string{redacted, "${1}" + redacted},
	}
}

// Redact scrubs a free-form string
func (r *Redactor) Redact(s string) string {
	for i, p := range r.patterns {
		s = p.ReplaceAllString(s, r.replacements[i])
	}
	return s
}

// RedactFields returns a copy of fields with sensitive keys masked and string
// values scrubbed. The input map is not modified.
func (r *Redactor) RedactFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if r.isSensitive(k) {
			out[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range r.sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
