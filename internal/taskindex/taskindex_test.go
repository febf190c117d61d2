package taskindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskPathRoundTrip(t *testing.T) {
	p, err := ParseTaskPath("a:b")
	require.NoError(t, err)
	require.Equal(t, "a.b", p.Canonical())

	p2, err := ParseTaskPath(p.Canonical())
	require.NoError(t, err)
	require.Equal(t, p.Canonical(), p2.Canonical())
}

func TestParseTaskPathRejectsEmptySegments(t *testing.T) {
	_, err := ParseTaskPath("a..b")
	require.Error(t, err)

	_, err = ParseTaskPath("")
	require.Error(t, err)
}

func TestBuildIndexesGroupsRecursively(t *testing.T) {
	tree := map[string]RawNode{
		"deploy": {
			Kind: RawGroup,
			Children: map[string]RawNode{
				"preview": {Kind: RawLeaf},
				"prod":    {Kind: RawLeaf, DependsOn: []string{"deploy.preview"}},
			},
		},
	}
	idx, err := Build(tree)
	require.NoError(t, err)

	task, ok := idx.Lookup("deploy.preview")
	require.True(t, ok)
	require.Equal(t, Leaf, task.Kind)

	prod, ok := idx.Lookup("deploy.prod")
	require.True(t, ok)
	require.Equal(t, []string{"deploy.preview"}, prod.DependsOn)
}

func TestBuildPreservesHiddenDisplayAndOriginal(t *testing.T) {
	tree := map[string]RawNode{
		"_internal": {Kind: RawLeaf},
	}
	idx, err := Build(tree)
	require.NoError(t, err)

	task, ok := idx.Lookup("internal")
	require.True(t, ok)
	require.True(t, task.Hidden)
	require.Equal(t, "_internal", task.Original.Canonical())
}

func TestBuildSequenceIsOneEntryNotFannedOut(t *testing.T) {
	tree := map[string]RawNode{
		"release": {
			Kind: RawSequence,
			SeqChildren: []RawNode{
				{Kind: RawLeaf},
				{Kind: RawLeaf},
			},
		},
	}
	idx, err := Build(tree)
	require.NoError(t, err)

	task, ok := idx.Lookup("release")
	require.True(t, ok)
	require.Equal(t, Sequence, task.Kind)
	require.Len(t, task.SeqChildren, 2)
}

func TestResolveMissReturnsSuggestions(t *testing.T) {
	idx, err := Build(map[string]RawNode{
		"build": {Kind: RawLeaf},
		"bundle": {Kind: RawLeaf},
	})
	require.NoError(t, err)

	_, err = idx.Resolve("buil")
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Contains(t, notFound.Suggestions, "build")
}

func TestResolveNeverCrashesOnPathologicalInput(t *testing.T) {
	idx, err := Build(map[string]RawNode{"build": {Kind: RawLeaf}})
	require.NoError(t, err)

	for _, raw := range []string{"", ":::", string(make([]byte, 5000))} {
		_, err := idx.Resolve(raw)
		require.Error(t, err)
	}
}
