package ssoconf

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid configuration value
type FieldError struct {
	Path    string // dotted key path, e.g. "AUTH_LDAP_USER_SEARCH[1]"
	Rule    string // stable machine-readable rule id
	Message string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// FieldErrors accumulates validation failures across a whole
// configuration document.
type FieldErrors []*FieldError

func (es FieldErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// OrNil returns the collected errors, or nil when there are none
func (es FieldErrors) OrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// Add appends a failure
func (es *FieldErrors) Add(path, rule, format string, args ...any) {
	*es = append(*es, &FieldError{
		Path:    path,
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
	})
}

// Extend merges another collection, prefixing its paths
func (es *FieldErrors) Extend(prefix string, other FieldErrors) {
	for _, e := range other {
		path := prefix
		if e.Path != "" {
			path = prefix + "." + e.Path
		}
		*es = append(*es, &FieldError{Path: path, Rule: e.Rule, Message: e.Message})
	}
}

func fieldErr(path, rule, format string, args ...any) FieldErrors {
	var es FieldErrors
	es.Add(path, rule, format, args...)
	return es
}
