package mbox

import (
	"net/mail"
	"strings"
)

// Address is a decoded mailbox: Name may be empty if the header had none
// or a parse error prevented extracting one, in which case Raw retains
// the original token.
type Address struct {
	Name  string
	Addr  string
	Raw   string
	Group string // non-empty if this mailbox came from an RFC 5322 group
}

// ParseAddressList is the exported entry point other packages (the index
// builder, the query evaluator) use to pull structured addresses out of a
// raw header value.
func ParseAddressList(raw string) []Address { return parseAddressList(raw) }

// parseAddressList parses an address-list header value (From, To, Cc, ...)
// honoring RFC 5322 group and mailbox forms, quoted strings, comments, and
// RFC 2047 encoded-word display names. On failure the raw token is
// retained as Raw, with an empty Name and Addr.
func parseAddressList(raw string) []Address {
	// Decode encoded-words before handing the value to net/mail, since
	// net/mail's parser treats "=?charset?...?=" as opaque atom text
	// rather than decoding it itself.
	decoded, _ := decodeWords(raw)

	if addrs, err := mail.ParseAddressList(decoded); err == nil {
		out := make([]Address, len(addrs))
		for i, a := range addrs {
			out[i] = Address{Name: a.Name, Addr: a.Address, Raw: a.String()}
		}
		return out
	}

	// Fall back to a group-aware, best-effort split on commas outside of
	// quotes/angle-brackets; any single token that still won't parse is
	// kept as a raw fallback entry with no decoded name.
	return splitAddressFallback(decoded)
}

// splitAddressFallback splits raw on top-level commas (not inside quotes,
// angle brackets, or parens) and tries to parse each piece individually,
// falling back to a raw-only Address when even that fails. It recognizes
// RFC 5322 group syntax ("group: a@x, b@y;"), recording the group name,
// for lists net/mail rejects as a whole, and gracefully degrades for
// genuinely malformed headers.
func splitAddressFallback(raw string) []Address {
	var out []Address
	for _, group := range splitGroups(raw) {
		name, list := group.name, group.list
		for _, part := range splitTopLevel(list, ',') {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if a, err := mail.ParseAddress(part); err == nil {
				out = append(out, Address{Name: a.Name, Addr: a.Address, Raw: part, Group: name})
			} else {
				out = append(out, Address{Raw: part, Group: name})
			}
		}
	}
	if len(out) == 0 && strings.TrimSpace(raw) != "" {
		out = append(out, Address{Raw: strings.TrimSpace(raw)})
	}
	return out
}

type addrGroup struct {
	name string
	list string
}

// splitGroups recognizes "name: a, b;" group syntax at the top level;
// ungrouped input becomes a single anonymous group spanning the whole
// string.
func splitGroups(raw string) []addrGroup {
	parts := splitTopLevel(raw, ';')
	var groups []addrGroup
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if idx := topLevelIndex(p, ':'); idx >= 0 {
			groups = append(groups, addrGroup{name: strings.TrimSpace(p[:idx]), list: p[idx+1:]})
		} else {
			groups = append(groups, addrGroup{list: p})
		}
	}
	if len(groups) == 0 {
		groups = []addrGroup{{list: raw}}
	}
	return groups
}

// splitTopLevel splits s on sep, ignoring occurrences inside double quotes,
// angle brackets, or parens.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depthAngle, depthParen := 0, 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case inQuote:
			continue
		case c == '<':
			depthAngle++
		case c == '>':
			if depthAngle > 0 {
				depthAngle--
			}
		case c == '(':
			depthParen++
		case c == ')':
			if depthParen > 0 {
				depthParen--
			}
		case c == sep && depthAngle == 0 && depthParen == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// topLevelIndex returns the index of the first top-level occurrence of c,
// or -1.
func topLevelIndex(s string, c byte) int {
	depthAngle, depthParen := 0, 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case inQuote:
			continue
		case ch == '<':
			depthAngle++
		case ch == '>':
			if depthAngle > 0 {
				depthAngle--
			}
		case ch == '(':
			depthParen++
		case ch == ')':
			if depthParen > 0 {
				depthParen--
			}
		case ch == c && depthAngle == 0 && depthParen == 0:
			return i
		}
	}
	return -1
}
