// Package security keeps credentials out of log output.
package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// RedactPlaceholder replaces every secret Redact finds.
const RedactPlaceholder = "***REDACTED***"

// ServiceRedactor is the service registry name of the application Redactor.
// Modules holding secrets register them with AddLiteral during Provision.
const ServiceRedactor = "security.redactor"

// RegisterSecrets adds secrets to the Redactor found through lookup,
// usually AppContext.GetService. It does nothing when none is registered.
func RegisterSecrets(lookup func(name string) (any, bool), secrets ...string) {
	svc, ok := lookup(ServiceRedactor)
	if !ok {
		return
	}
	if r, ok := svc.(*Redactor); ok {
		for _, s := range secrets {
			r.AddLiteral(s)
		}
	}
}

// rules is an immutable snapshot. Writers build a new one and swap it in,
// so Redact never takes a lock.
type rules struct {
	secrets  []string
	replacer *strings.Replacer // nil without secrets
	formats  []*regexp.Regexp
}

func (rs *rules) withSecret(secret string) *rules {
	secrets := append(slices.Clone(rs.secrets), secret)
	// Longest first, so a secret containing another one is replaced whole.
	slices.SortStableFunc(secrets, func(a, b string) int { return cmp.Compare(len(b), len(a)) })

	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s, RedactPlaceholder)
	}
	return &rules{secrets: secrets, replacer: strings.NewReplacer(pairs...), formats: rs.formats}
}

func (rs *rules) withFormat(re *regexp.Regexp) *rules {
	return &rules{
		secrets:  rs.secrets,
		replacer: rs.replacer,
		formats:  append(slices.Clip(rs.formats), re),
	}
}

// Redactor masks credentials in strings. Configured secrets (bot token,
// API key, webhook secrets) are matched literally, well-known credential
// formats by regular expression. Safe for concurrent use.
type Redactor struct {
	writeMu sync.Mutex
	current atomic.Pointer[rules]
}

// NewRedactor returns a Redactor that knows DefaultPatterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.current.Store(&rules{formats: DefaultPatterns()})
	return r
}

// AddPattern makes r mask every match of pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.current.Store(r.current.Load().withFormat(pattern))
}

// AddLiteral makes r mask secret wherever it appears. Empty and already
// known values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	rs := r.current.Load()
	if slices.Contains(rs.secrets, secret) {
		return
	}
	r.current.Store(rs.withSecret(secret))
}

// Redact returns s with every known secret masked. Literal secrets are
// replaced before patterns run so a token is never half masked.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	rs := r.current.Load()
	if rs.replacer != nil {
		s = rs.replacer.Replace(s)
	}
	for _, re := range rs.formats {
		s = re.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// literalCount reports how many distinct secrets r holds.
func (r *Redactor) literalCount() int {
	return len(r.current.Load().secrets)
}

// DefaultPatterns returns compiled regex patterns for the credentials parrot
// handles: Telegram bot tokens, OpenAI-style keys and bearer tokens.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Telegram bot token: <bot id>:<35 char hash>, also inside /bot<token>/ URLs.
		regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`),
		// OpenAI: sk-... and sk-proj-...
		regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{16,}`),
	}
}
