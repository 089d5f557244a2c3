package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_TokenRoundTrip(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Token("shop")
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.SetToken("shop", "  secret  "))
	token, err := s.Token("shop")
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	require.NoError(t, s.DeleteToken("shop"))
	_, err = s.Token("shop")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStore_SetTokenRejectsEmpty(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))
	assert.Error(t, s.SetToken("shop", "   "))
}

func TestStore_ResolvePrefersEnvironment(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: TokenKey("shop"), Data: []byte("from-keyring")},
	}))

	t.Setenv(TokenEnv, "")
	token, err := s.Resolve("shop")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", token)

	t.Setenv(TokenEnv, "from-env")
	token, err = s.Resolve("shop")
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}
