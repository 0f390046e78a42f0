package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmailAddress(t *testing.T) {
	local, domain := SplitEmailAddress("Alice@Example.COM")
	assert.Equal(t, "alice", local)
	assert.Equal(t, "example.com", domain)

	local, domain = SplitEmailAddress("no-at-sign")
	assert.Equal(t, "no-at-sign", local)
	assert.Equal(t, "", domain)
}

func TestExtractAddressToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"bare address", "alice@catty.my.id", "alice@catty.my.id"},
		{"display name", "Alice Doe <alice@catty.my.id>", "alice@catty.my.id"},
		{"multiple, first wins", "a@catty.my.id, b@cattyprems.top", "a@catty.my.id"},
		{"no address", "not an address", ""},
		{"embedded in text", "for <bob@cattyprems.top>; Tue", "bob@cattyprems.top"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractAddressToken(tc.value))
		})
	}
}

func TestAddressDomain(t *testing.T) {
	domain, ok := AddressDomain("alice@Catty.My.ID")
	assert.True(t, ok)
	assert.Equal(t, "catty.my.id", domain)

	_, ok = AddressDomain("nodomain")
	assert.False(t, ok)
}
