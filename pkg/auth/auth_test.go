package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasScopeAlgebra(t *testing.T) {
	cases := []struct {
		name     string
		scopes   []string
		required string
		want     bool
	}{
		{"exact match", []string{"tools:echo"}, "tools:echo", true},
		{"category wildcard", []string{"tools:*"}, "tools:echo", true},
		{"global wildcard", []string{"*:*"}, "anything:action", true},
		{"no match", []string{"tools:echo"}, "tools:other", false},
		{"different category wildcard doesn't leak", []string{"resources:*"}, "tools:echo", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := NewUser("u1", 100, tc.scopes...)
			assert.Equal(t, tc.want, u.HasScope(tc.required))
		})
	}
}

func TestHasLevel(t *testing.T) {
	u := NewUser("u1", 50)
	assert.True(t, u.HasLevel(50))
	assert.True(t, u.HasLevel(100))
	assert.False(t, u.HasLevel(10))
}

func TestHasAnyScopes(t *testing.T) {
	withScopes := NewUser("u1", 100, "tools:echo")
	assert.True(t, withScopes.HasAnyScopes())

	noScopes := NewUser("u2", 100)
	assert.False(t, noScopes.HasAnyScopes())

	var nilUser *AuthenticatedUser
	assert.False(t, nilUser.HasAnyScopes())
	assert.False(t, nilUser.HasScope("tools:echo"))
	assert.False(t, nilUser.HasLevel(1000))
}

func TestAuthRequestTokenPrecedence(t *testing.T) {
	req := NewAuthRequest()
	req.Headers["x-api-token"] = "api-token"
	req.Headers["authorization"] = "Bearer bearer-token"
	req.Query["key"] = "query-token"

	assert.Equal(t, "api-token", req.GetToken())

	delete(req.Headers, "x-api-token")
	assert.Equal(t, "bearer-token", req.GetToken())

	delete(req.Headers, "authorization")
	assert.Equal(t, "query-token", req.GetToken())
}

func TestGetBearerTokenCaseInsensitivePrefix(t *testing.T) {
	req := NewAuthRequest()
	req.Headers["authorization"] = "BEARER abc123"
	assert.Equal(t, "abc123", req.GetBearerToken())
}

func TestGetBearerTokenRejectsOtherSchemes(t *testing.T) {
	req := NewAuthRequest()
	req.Headers["authorization"] = "Basic dXNlcjpwYXNz"
	assert.Equal(t, "", req.GetBearerToken())
}
