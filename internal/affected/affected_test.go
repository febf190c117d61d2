package affected

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectMatchPrefixSemantics(t *testing.T) {
	current := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {InputGlobs: []string{"src"}},
		},
	}

	out := ComputeAffectedTasks(
		[]string{"apps/web/src/index.ts"},
		[]string{"build"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Equal(t, []string{"build"}, out)
}

func TestDirectMatchGlobSemantics(t *testing.T) {
	current := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {InputGlobs: []string{"src/**/*.ts"}},
		},
	}

	affectedOut := ComputeAffectedTasks(
		[]string{"apps/web/src/nested/a.ts"},
		[]string{"build"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Equal(t, []string{"build"}, affectedOut)

	unaffectedOut := ComputeAffectedTasks(
		[]string{"apps/web/README.md"},
		[]string{"build"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Empty(t, unaffectedOut)
}

func TestTransitiveInternalDependencyIsAffected(t *testing.T) {
	current := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {InputGlobs: []string{"src"}},
			"test":  {DependsOn: []string{"build"}},
			"lint":  {InputGlobs: []string{"eslintrc"}},
		},
	}

	out := ComputeAffectedTasks(
		[]string{"apps/web/src/index.ts"},
		[]string{"lint", "build", "test"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Equal(t, []string{"build", "test"}, out)
}

func TestExternalDependencyCrossesProjectBoundary(t *testing.T) {
	shared := ProjectConfig{
		Root: "packages/shared",
		Tasks: map[string]TaskSpec{
			"build": {InputGlobs: []string{"src"}},
		},
	}
	web := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {DependsOn: []string{"#shared:build"}},
		},
	}
	all := map[string]ProjectConfig{"shared": shared, "web": web}

	out := ComputeAffectedTasks(
		[]string{"packages/shared/src/index.ts"},
		[]string{"build"},
		web,
		all,
	)
	require.Equal(t, []string{"build"}, out)
}

func TestMalformedExternalRefIsSilentlyNotAffected(t *testing.T) {
	web := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {DependsOn: []string{"#nocolon"}},
			"deploy": {DependsOn: []string{"#missing:task"}},
		},
	}

	out := ComputeAffectedTasks(
		[]string{"apps/web/src/index.ts"},
		[]string{"build", "deploy"},
		web,
		map[string]ProjectConfig{"web": web},
	)
	require.Empty(t, out)
}

func TestExternalDependencyCycleDoesNotHang(t *testing.T) {
	a := ProjectConfig{
		Root: "a",
		Tasks: map[string]TaskSpec{
			"build": {DependsOn: []string{"#b:build"}},
		},
	}
	b := ProjectConfig{
		Root: "b",
		Tasks: map[string]TaskSpec{
			"build": {DependsOn: []string{"#a:build"}},
		},
	}
	all := map[string]ProjectConfig{"a": a, "b": b}

	out := ComputeAffectedTasks(
		[]string{"unrelated/file.txt"},
		[]string{"build"},
		a,
		all,
	)
	require.Empty(t, out)
}

func TestOutputPreservesPipelineOrderNotAffectedOrder(t *testing.T) {
	current := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build":   {InputGlobs: []string{"src"}},
			"test":    {DependsOn: []string{"build"}},
			"publish": {DependsOn: []string{"test"}},
		},
	}

	out := ComputeAffectedTasks(
		[]string{"apps/web/src/index.ts"},
		[]string{"publish", "test", "build"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Equal(t, []string{"publish", "test", "build"}, out)
}

func TestUnchangedFilesYieldNoAffectedTasks(t *testing.T) {
	current := ProjectConfig{
		Root: "apps/web",
		Tasks: map[string]TaskSpec{
			"build": {InputGlobs: []string{"src"}},
		},
	}

	out := ComputeAffectedTasks(
		[]string{"apps/other/src/index.ts"},
		[]string{"build"},
		current,
		map[string]ProjectConfig{"web": current},
	)
	require.Empty(t, out)
}
