package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func netflixRule() Rule {
	return ParseRule("Netflix", "netflix.com",
		"Netflix: Your sign-in code|Your Netflix temporary access code|Netflix: Kode masukmu|Kode akses sementara Netflix-mu")
}

func zoomRule() Rule {
	return ParseRule("Zoom", "zoom.us",
		"Kode untuk masuk ke Zoom|Undangan akun Zoom|Zoom account invitation|Code for signing in to Zoom")
}

func TestParseRule(t *testing.T) {
	r := ParseRule("Netflix", " netflix.com ", "a| b |c||")
	assert.Equal(t, "netflix.com", r.Sender)
	assert.Equal(t, []string{"a", "b", "c"}, r.SubjectAlternatives)

	r = ParseRule("Empty", "", "")
	assert.Empty(t, r.Sender)
	assert.Empty(t, r.SubjectAlternatives)
}

func TestRuleMatchesBySubject(t *testing.T) {
	r := netflixRule()

	// Subject alone is enough, regardless of sender.
	assert.True(t, r.Matches("Your Netflix temporary access code", "someone@example.org"))
	assert.True(t, r.Matches("Fwd: Netflix: Kode masukmu", "friend@gmail.com"))
}

func TestRuleMatchesBySender(t *testing.T) {
	r := netflixRule()

	// Sender alone is enough, regardless of subject.
	assert.True(t, r.Matches("Weekly recommendations", "no-reply@netflix.com"))

	// Neither clause matches.
	assert.False(t, r.Matches("Invoice", "billing@example.com"))
}

func TestRuleMatchingIsCaseSensitive(t *testing.T) {
	r := netflixRule()

	// Substring containment is deliberately case-sensitive.
	assert.False(t, r.Matches("your netflix temporary access code", "someone@example.org"))
	assert.False(t, r.Matches("Invoice", "no-reply@NETFLIX.COM"))
}

func TestEmptyRuleMatchesNothing(t *testing.T) {
	r := ParseRule("Empty", "", "")

	assert.False(t, r.Matches("Your Netflix temporary access code", "no-reply@netflix.com"))
	assert.False(t, r.Matches("", ""))
}

func TestMatchesCatchAll(t *testing.T) {
	rules := []Rule{zoomRule(), netflixRule()}

	// Unrelated sender lands in catch-all.
	assert.True(t, MatchesCatchAll("newsletter@shop.example", rules))

	// A Zoom-sent message with a subject outside Zoom's whitelist is still
	// excluded from catch-all: exclusion is by sender domain, not subject.
	assert.False(t, MatchesCatchAll("billing@zoom.us", rules))

	// Subject-only eligibility does not exclude from catch-all.
	assert.True(t, MatchesCatchAll("impostor@phishing.example", rules))

	// No named services means everything is catch-all.
	assert.True(t, MatchesCatchAll("anyone@anywhere.example", nil))
}
