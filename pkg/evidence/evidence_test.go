package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credentia/pkg/domain-errors"
)

func TestHashAndMatch(t *testing.T) {
	doc := []byte("diploma supplement, 2026 cohort")
	ref := Hash(doc)

	assert.Len(t, ref.String(), 64)
	assert.True(t, ref.Matches(doc))
	assert.False(t, ref.Matches([]byte("tampered")))
}

func TestParseRef(t *testing.T) {
	t.Run("round-trips a computed hash", func(t *testing.T) {
		ref := Hash([]byte("audit report"))
		parsed, err := ParseRef(ref.String())
		require.NoError(t, err)
		assert.Equal(t, ref, parsed)
	})

	t.Run("empty reference is allowed", func(t *testing.T) {
		ref, err := ParseRef("")
		require.NoError(t, err)
		assert.True(t, ref.IsZero())
	})

	t.Run("rejects malformed digests", func(t *testing.T) {
		for _, bad := range []string{"xyz", "ABCDEF", "1234"} {
			_, err := ParseRef(bad)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}
