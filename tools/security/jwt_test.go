package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))

	token, exp, err := Generate(opts, "gm-1", []string{ScopeAdmin})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := Verify(opts, token)
	require.NoError(t, err)
	assert.Equal(t, "gm-1", claims.Subject())
	assert.True(t, claims.HasScope(ScopeAdmin))
	assert.False(t, claims.HasScope("other"))
}

func TestVerify_Rejects(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, err := Generate(opts, "gm-1", nil)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("other")), token)
	assert.Error(t, err)

	_, err = Verify(Options{}, token)
	assert.Error(t, err)

	expired := opts
	expired.TTL = time.Nanosecond
	old, _, err := Generate(expired, "gm-1", nil)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = Verify(opts, old)
	assert.Error(t, err)
}
