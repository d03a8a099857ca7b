package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindAdded, KindDeleted, KindLifecycleChanged, KindError} {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("renamed")
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestEntry_Ambiguous(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Entry{NewValue: "595-SN74LS00N..."}).Ambiguous())
	assert.False(t, (&Entry{NewValue: "595-SN74LS00N"}).Ambiguous())
}
