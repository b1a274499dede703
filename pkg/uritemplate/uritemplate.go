// Package uritemplate matches a concrete URI against a
// "scheme://host/segment/{var}/..." resource template pattern, and
// expands a template back into a concrete URI given parameter values.
package uritemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(\*?)\}`)

// IsTemplate reports whether s contains any {var} or {var*} placeholder.
func IsTemplate(s string) bool {
	return placeholderPattern.MatchString(s)
}

// Template is a compiled uriTemplate pattern, ready to Match or Expand.
type Template struct {
	raw        string
	matcher    *regexp.Regexp
	varNames   []string
	queryNames []string
}

// Compile parses a uriTemplate string such as "users://{id}" or
// "files://{path*}?rev={rev}" into a matchable/expandable Template.
func Compile(tmpl string) (*Template, error) {
	schemeSplit := strings.SplitN(tmpl, "://", 2)
	if len(schemeSplit) != 2 {
		return nil, fmt.Errorf("uritemplate: %q has no scheme://host separator", tmpl)
	}
	scheme := schemeSplit[0]
	rest := schemeSplit[1]

	// Split off an optional query portion: host/path?key={var}&....
	var queryPart string
	if qi := strings.Index(rest, "?"); qi >= 0 {
		queryPart = rest[qi+1:]
		rest = rest[:qi]
	}

	t := &Template{raw: tmpl}

	var pathPattern strings.Builder
	pathPattern.WriteString("^")
	pathPattern.WriteString(regexp.QuoteMeta(scheme))
	pathPattern.WriteString("://")

	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(rest, -1) {
		literal := rest[last:loc[0]]
		pathPattern.WriteString(regexp.QuoteMeta(literal))

		name := rest[loc[2]:loc[3]]
		greedy := loc[4] >= 0 && loc[5] > loc[4]

		t.varNames = append(t.varNames, name)
		if greedy {
			pathPattern.WriteString("(.+)")
		} else {
			pathPattern.WriteString(`([^/]+)`)
		}
		last = loc[1]
	}
	pathPattern.WriteString(regexp.QuoteMeta(rest[last:]))
	pathPattern.WriteString("$")

	re, err := regexp.Compile(pathPattern.String())
	if err != nil {
		return nil, fmt.Errorf("uritemplate: compiling %q: %w", tmpl, err)
	}
	t.matcher = re

	if queryPart != "" {
		for _, param := range strings.Split(queryPart, "&") {
			kv := strings.SplitN(param, "=", 2)
			if len(kv) != 2 {
				continue
			}
			m := placeholderPattern.FindStringSubmatch(kv[1])
			if m == nil {
				continue
			}
			t.queryNames = append(t.queryNames, kv[0]+"="+m[1])
		}
	}

	return t, nil
}

// Match attempts to match uri against the compiled template. It
// returns the captured (and URL-decoded) variable values, or false if
// the template path portion doesn't match. Template-declared query
// parameters are matched optionally: if present in uri they contribute
// additional entries, their absence is not a match failure.
func Match(uri, tmpl string) (map[string]string, bool) {
	t, err := Compile(tmpl)
	if err != nil {
		return nil, false
	}
	return t.Match(uri)
}

// Match is the compiled-template form of the package-level Match.
func (t *Template) Match(uri string) (map[string]string, bool) {
	path := uri
	var query string
	if qi := strings.Index(uri, "?"); qi >= 0 {
		path = uri[:qi]
		query = uri[qi+1:]
	}

	groups := t.matcher.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}

	out := map[string]string{}
	for i, name := range t.varNames {
		decoded, err := url.QueryUnescape(groups[i+1])
		if err != nil {
			decoded = groups[i+1]
		}
		out[name] = decoded
	}

	if query != "" {
		values, err := url.ParseQuery(query)
		if err == nil {
			for _, qn := range t.queryNames {
				parts := strings.SplitN(qn, "=", 2)
				if len(parts) != 2 {
					continue
				}
				key, varName := parts[0], parts[1]
				if v := values.Get(key); v != "" {
					out[varName] = v
				}
			}
		}
	}

	return out, true
}

// Expand substitutes params into tmpl, URL-encoding each value.
// Missing params expand to the empty string.
func Expand(tmpl string, params map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		name := sub[1]
		val, ok := params[name]
		if !ok {
			return ""
		}
		if sub[2] == "*" {
			// Reserved-expansion variables keep path separators.
			segments := strings.Split(val, "/")
			for i, seg := range segments {
				segments[i] = url.QueryEscape(seg)
			}
			return strings.Join(segments, "/")
		}
		return url.QueryEscape(val)
	})
}
