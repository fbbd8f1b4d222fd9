package apikey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, HashKey("secret"), HashKey("secret"))
	assert.NotEqual(t, HashKey("secret"), HashKey("secret2"))
	assert.Len(t, HashKey("x"), 64)
	assert.Len(t, generateRawKey(), 64)
	assert.NotEqual(t, generateRawKey(), generateRawKey())
}

func TestStaticAndChain(t *testing.T) {
	s := NewStatic()
	s.Add("admin-key", KeyInfo{Name: "bootstrap", Role: RoleAdmin})
	s.Add("", KeyInfo{Name: "ignored"})

	info, err := s.Validate(context.Background(), "admin-key")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", info.Name)
	assert.True(t, info.IsActive)
	assert.NotEmpty(t, info.ID)
	assert.True(t, info.Allows(RoleReader))

	_, err = s.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	reader := NewStatic()
	reader.Add("reader-key", KeyInfo{Name: "dashboard", Role: RoleReader})
	chain := Chain{s, reader}
	info, err = chain.Validate(context.Background(), "reader-key")
	require.NoError(t, err)
	assert.False(t, info.Allows(RoleAdmin))

	_, err = chain.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("root")
	assert.Error(t, err)
}
