package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeaseRegistry_OneActiveLeasePerType(t *testing.T) {
	leases := NewLeaseRegistry()

	token, err := leases.Acquire("personal")
	assert.Nil(t, err)
	assert.NotEqual(t, "", token)

	_, err = leases.Acquire("personal")
	assert.Equal(t, ErrAlreadyRunning, err)

	// A different type is independent
	other, err := leases.Acquire("system")
	assert.Nil(t, err)
	assert.NotEqual(t, token, other)
}

func TestLeaseRegistry_ReleaseRequiresMatchingToken(t *testing.T) {
	leases := NewLeaseRegistry()

	token, err := leases.Acquire("personal")
	assert.Nil(t, err)

	// A stale token must not release someone else's lease
	leases.Release("personal", "not-the-token")

	_, err = leases.Acquire("personal")
	assert.Equal(t, ErrAlreadyRunning, err)

	leases.Release("personal", token)

	_, err = leases.Acquire("personal")
	assert.Nil(t, err)
}
