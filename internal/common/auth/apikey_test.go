package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuthenticator_DisabledAcceptsAll(t *testing.T) {
	a := NewAPIKeyAuthenticator("X-API-Key", []string{"", "  "})
	assert.False(t, a.Enabled())
	assert.True(t, a.Verify(""))
}

func TestAPIKeyAuthenticator_Verify(t *testing.T) {
	a := NewAPIKeyAuthenticator("X-API-Key", []string{"alpha", " beta "})

	assert.True(t, a.Enabled())
	assert.Equal(t, "X-API-Key", a.Header())
	assert.True(t, a.Verify("alpha"))
	assert.True(t, a.Verify("beta"))
	assert.False(t, a.Verify("gamma"))
	assert.False(t, a.Verify(""))
	assert.False(t, a.Verify("alph"))
}
