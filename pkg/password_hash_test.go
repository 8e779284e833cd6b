package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassHashCost14 = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i"

func TestHashPassword(t *testing.T) {
	passwordHash, err := HashPasswordWithCost("sr", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEmpty(t, passwordHash)
	assert.True(t, CheckPasswordHash("sr", passwordHash))
	assert.False(t, CheckPasswordHash("rs", passwordHash))

	// generated with cost 14
	assert.True(t, CheckPasswordHash("testpass", testPassHashCost14))
	assert.False(t, CheckPasswordHash("testpass", "not-a-hash"))
}

func TestHashPasswordWithCost_Invalid(t *testing.T) {
	_, err := HashPasswordWithCost("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = HashPasswordWithCost("sr", bcrypt.MinCost-1)
	assert.Error(t, err)

	_, err = HashPasswordWithCost("sr", bcrypt.MaxCost+1)
	assert.Error(t, err)
}

func TestPasswordNeedsRehash(t *testing.T) {
	cheap, err := HashPasswordWithCost("sr", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, PasswordNeedsRehash(cheap, DefaultPasswordCost))
	assert.False(t, PasswordNeedsRehash(cheap, bcrypt.MinCost))
	assert.False(t, PasswordNeedsRehash(testPassHashCost14, DefaultPasswordCost))
	assert.True(t, PasswordNeedsRehash("not-a-hash", bcrypt.MinCost))
}
