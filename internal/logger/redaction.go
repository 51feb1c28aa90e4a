package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor masks credentials that may appear in logged arguments, such as
// the user info of an rtmp:// or http:// URL
type Redactor struct {
	rules []redactionRule
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			// user:pass@ in any URL, scheme kept
			{regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.\-]*://)[^\s/@":]+:[^\s/@"]*@`), "${1}" + redacted + "@"},

			// Bearer tokens
			{regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/=-]+`), "Bearer " + redacted},

			// key=value style secrets, in query strings and JSON
			{regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api_?key|key|auth)(["\s:=]+)[^\s"&]+`), "${1}${2}" + redacted},

			// ffmpeg crypto keys: -decryption_key 0011..., -encryption_key ...
			{regexp.MustCompile(`(-(?:de|en)cryption_key)(["\s,]+)[0-9A-Fa-f]+`), "${1}${2}" + redacted},
		},
	}
}

// AddPattern adds a custom redaction pattern; matches are replaced entirely
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{pattern: re, replacement: redacted})
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.rules {
		result = rule.pattern.ReplaceAllString(result, rule.replacement)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

// redactingWriter is an io.Writer that redacts sensitive information
type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers do not see a short write when
// redaction changed the length
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
