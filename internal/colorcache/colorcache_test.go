package colorcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameKeyReturnsSameColor(t *testing.T) {
	c := New()
	first := c.PrefixWithColor("build", "build")
	second := c.PrefixWithColor("build", "build")
	require.Equal(t, first, second)
}

func TestDifferentKeysCanReturnDifferentColors(t *testing.T) {
	c := New()
	names := []string{"a", "b", "c", "d", "e", "f"}
	seen := map[string]bool{}
	for _, n := range names {
		seen[c.PrefixWithColor(n, n)] = true
	}
	require.True(t, len(seen) > 1, "expected more than one distinct color across %d names", len(names))
}
