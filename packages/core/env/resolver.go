package env

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
)

var variablePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands {{name}} placeholders against a snapshot of an
// environment set. It never mutates its variables after construction, so a
// single Resolver may be shared by concurrent executions.
type Resolver struct {
	variables map[string]string
	warnFunc  WarnFunc
}

// NewResolver builds a resolver from an ordered variable list. When a key
// appears more than once the last definition wins.
func NewResolver(vars []model.Variable) *Resolver {
	r := &Resolver{variables: make(map[string]string, len(vars))}
	for _, v := range vars {
		r.variables[v.Key] = v.Value
	}
	return r
}

// ForSet returns a resolver for set. A nil set yields the identity resolver.
func ForSet(set *model.EnvironmentSet) *Resolver {
	if set == nil {
		return NewResolver(nil)
	}
	return NewResolver(set.Variables)
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

// Resolve replaces every placeholder naming a known key. Unknown
// placeholders stay verbatim. Substituted values are not scanned again.
func (r *Resolver) Resolve(input string) string {
	if len(r.variables) == 0 || !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if val, ok := r.variables[name]; ok {
			return val
		}
		r.warn("unresolved variable: %s", name)
		return match
	})
}

// ResolveHeaders resolves each header value, keeping order and keys.
func (r *Resolver) ResolveHeaders(headers []model.Header) []model.Header {
	if headers == nil {
		return nil
	}
	out := make([]model.Header, len(headers))
	for i, h := range headers {
		out[i] = model.Header{Key: h.Key, Value: r.Resolve(h.Value)}
	}
	return out
}

// ResolveDefinition applies the resolver to the URL, each header value and
// the body of a copy of def.
func (r *Resolver) ResolveDefinition(def model.Definition) model.Definition {
	out := def.Clone()
	out.URL = r.Resolve(def.URL)
	out.Headers = r.ResolveHeaders(def.Headers)
	if def.Body != nil {
		body := r.Resolve(*def.Body)
		out.Body = &body
	}
	return out
}

// Unresolved lists the distinct placeholder names in input that the
// resolver has no value for, in order of first appearance.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		name := m[1]
		if _, ok := r.variables[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	return missing
}

// Placeholders returns every placeholder name referenced by input.
func Placeholders(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		names = append(names, m[1])
	}
	return names
}
