// Package querystring reads and edits single parameters of a URL search
// string without disturbing the parameters around them.
//
// Unlike url.Values, which re-encodes and sorts every pair, the helpers here
// keep untouched pairs byte-for-byte and in their original order so that a
// link shared by a visitor survives a round trip through the viewer.
package querystring

import (
	"net/url"
	"strings"
)

// pair is one raw "name=value" segment of a search string.
type pair struct {
	raw  string
	name string
}

// split breaks a search string into its segments and returns any trailing
// "#fragment" separately. Empty segments ("&&") are kept as empty pairs.
func split(search string) ([]pair, string) {
	search = strings.TrimPrefix(search, "?")

	var fragment string
	if idx := strings.IndexByte(search, '#'); idx >= 0 {
		search, fragment = search[:idx], search[idx:]
	}

	if search == "" {
		return nil, fragment
	}

	segments := strings.Split(search, "&")
	pairs := make([]pair, 0, len(segments))

	for _, seg := range segments {
		if seg == "" {
			pairs = append(pairs, pair{})

			continue
		}

		rawName, _, _ := strings.Cut(seg, "=")

		name, err := url.QueryUnescape(rawName)
		if err != nil {
			name = rawName
		}

		pairs = append(pairs, pair{raw: seg, name: name})
	}

	return pairs, fragment
}

// join renders pairs back into a search string followed by fragment. When
// no non-empty pair is left the query part is dropped entirely.
func join(pairs []pair, fragment string) string {
	empty := true

	for _, p := range pairs {
		if p.raw != "" {
			empty = false

			break
		}
	}

	if empty {
		return fragment
	}

	var sb strings.Builder

	sb.WriteByte('?')

	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}

		sb.WriteString(p.raw)
	}

	sb.WriteString(fragment)

	return sb.String()
}

// Get returns the decoded value of the first name parameter in search.
// A bare name ("?nocors") yields an empty value. A first match whose value
// cannot be decoded is reported as absent.
func Get(search, name string) (string, bool) {
	pairs, _ := split(search)

	for _, p := range pairs {
		if p.raw == "" || p.name != name {
			continue
		}

		_, rawValue, _ := strings.Cut(p.raw, "=")

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return "", false
		}

		return value, true
	}

	return "", false
}

// Has reports whether name occurs in search, whatever its value.
func Has(search, name string) bool {
	pairs, _ := split(search)

	for _, p := range pairs {
		if p.raw != "" && p.name == name {
			return true
		}
	}

	return false
}

// Set returns search with name set to value. The first occurrence is
// replaced in place and later duplicates are dropped; a missing parameter is
// appended, reusing a trailing empty segment. Other segments and the
// fragment are kept as they are.
func Set(search, name, value string) string {
	encoded := pair{
		raw:  url.QueryEscape(name) + "=" + url.QueryEscape(value),
		name: name,
	}

	pairs, fragment := split(search)
	out := make([]pair, 0, len(pairs)+1)
	replaced := false

	for _, p := range pairs {
		if p.raw == "" || p.name != name {
			out = append(out, p)

			continue
		}

		if !replaced {
			out = append(out, encoded)
			replaced = true
		}
	}

	if !replaced {
		if n := len(out); n > 0 && out[n-1].raw == "" {
			out = out[:n-1]
		}

		out = append(out, encoded)
	}

	return join(out, fragment)
}

// Remove returns search with every occurrence of name removed.
func Remove(search, name string) string {
	pairs, fragment := split(search)
	out := make([]pair, 0, len(pairs))

	for _, p := range pairs {
		if p.raw == "" || p.name != name {
			out = append(out, p)
		}
	}

	return join(out, fragment)
}

// Update sets name to *value, or removes it when value is nil.
func Update(search, name string, value *string) string {
	if value == nil {
		return Remove(search, name)
	}

	return Set(search, name, *value)
}
