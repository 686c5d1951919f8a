package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures every rendering embeds the semantic version.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, UserAgent(), Short())
}
