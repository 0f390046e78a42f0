// Package filter implements the routing rules that bucket stored messages
// into service scopes at query time. Matching is pure: the engine never
// touches storage and never mutates the message.
//
// Matching is case-sensitive substring containment, not tokenized or
// normalized. That mirrors the behavior clients already depend on and is a
// known limitation, not an oversight.
package filter

import "strings"

// Rule is a service's routing rule with the subject alternation already
// parsed. Build it once per request with ParseRule instead of re-splitting
// the stored string at every match.
type Rule struct {
	Name string
	// Sender is a single substring matched against the from address.
	Sender string
	// SubjectAlternatives is the ordered set of subject substrings; a
	// message matches when any one of them is contained in its subject.
	SubjectAlternatives []string
}

// ParseRule builds a Rule from the stored filter columns. The subject filter
// is a "|"-delimited alternation; blank alternatives are dropped. An empty
// subject filter means no subject constraint.
func ParseRule(name, senderFilter, subjectFilter string) Rule {
	r := Rule{
		Name:   name,
		Sender: strings.TrimSpace(senderFilter),
	}
	for _, alt := range strings.Split(subjectFilter, "|") {
		alt = strings.TrimSpace(alt)
		if alt != "" {
			r.SubjectAlternatives = append(r.SubjectAlternatives, alt)
		}
	}
	return r
}

// Matches reports whether a message with the given subject and from address
// belongs to this rule's scope: any subject alternative matches, or the
// sender substring is present and matches. A rule with neither filter
// matches nothing.
func (r Rule) Matches(subject, from string) bool {
	for _, alt := range r.SubjectAlternatives {
		if strings.Contains(subject, alt) {
			return true
		}
	}
	if r.Sender != "" && strings.Contains(from, r.Sender) {
		return true
	}
	return false
}

// MatchesSender reports whether the from address matches this rule's sender
// substring. Subject alternatives are ignored; the catch-all scope is
// defined by sender exclusion only.
func (r Rule) MatchesSender(from string) bool {
	return r.Sender != "" && strings.Contains(from, r.Sender)
}

// MatchesCatchAll reports whether a message belongs to the catch-all scope:
// its sender matches none of the named services' sender filters. A message
// that would match a named service by subject alone, but comes from an
// unrelated sender, still lands here rather than being dropped.
func MatchesCatchAll(from string, rules []Rule) bool {
	for _, r := range rules {
		if r.MatchesSender(from) {
			return false
		}
	}
	return true
}
