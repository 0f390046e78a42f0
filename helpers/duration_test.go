package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("24h")
	assert.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	d, err = ParseDuration("7d")
	assert.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseDuration("1.5d")
	assert.NoError(t, err)
	assert.Equal(t, 36*time.Hour, d)

	_, err = ParseDuration("")
	assert.Error(t, err)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
}
