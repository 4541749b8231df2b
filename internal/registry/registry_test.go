package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []Tool {
	return []Tool{
		{Name: "fmt", Patterns: []string{"*.py"}, License: LicensePermissive, Command: []string{"fmt"}, Cost: 1},
		{Name: "lint", Patterns: []string{"*.py"}, License: LicensePermissive, Command: []string{"lint"}, DependsOn: []string{"fmt"}, Cost: 3},
		{Name: "types", Patterns: []string{"*.py"}, License: LicensePermissive, Command: []string{"types"}, DependsOn: []string{"lint"}, Cost: 8},
		{Name: "secrets", Patterns: []string{"*"}, License: LicensePermissive, Command: []string{"secrets"}, Cost: 6},
	}
}

func TestBuildRejectsEmptyName(t *testing.T) {
	_, err := Build([]Tool{{Name: "  "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name")
}

func TestBuildRejectsDuplicates(t *testing.T) {
	_, err := Build([]Tool{
		{Name: "fmt", Command: []string{"fmt"}},
		{Name: "fmt", Command: []string{"fmt"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]Tool{
		{Name: "lint", Command: []string{"lint"}, DependsOn: []string{"ghost"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuildRejectsCycleAndNamesMembers(t *testing.T) {
	_, err := Build([]Tool{
		{Name: "a", Command: []string{"a"}, DependsOn: []string{"b"}},
		{Name: "b", Command: []string{"b"}, DependsOn: []string{"a"}},
		{Name: "c", Command: []string{"c"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.NotContains(t, err.Error(), "c,")
}

func TestLevelsRespectDependencies(t *testing.T) {
	reg, err := Build(testCatalog())
	require.NoError(t, err)

	levels := reg.Levels()
	position := make(map[string]int)
	for i, level := range levels {
		for _, name := range level {
			position[name] = i
		}
	}
	for _, tool := range testCatalog() {
		for _, dep := range tool.DependsOn {
			assert.Less(t, position[dep], position[tool.Name],
				"%s must be in a strictly earlier level than %s", dep, tool.Name)
		}
	}
}

func TestLevelOrderingCostDescThenName(t *testing.T) {
	reg, err := Build([]Tool{
		{Name: "bb", Command: []string{"bb"}, Cost: 2},
		{Name: "aa", Command: []string{"aa"}, Cost: 2},
		{Name: "zz", Command: []string{"zz"}, Cost: 9},
	})
	require.NoError(t, err)

	levels := reg.Levels()
	require.Len(t, levels, 1)
	assert.Equal(t, []string{"zz", "aa", "bb"}, levels[0])
}

func TestMatchingBaseNameAndPathPatterns(t *testing.T) {
	reg, err := Build([]Tool{
		{Name: "py", Patterns: []string{"*.py"}, Command: []string{"py"}},
		{Name: "docker", Patterns: []string{"Dockerfile"}, Command: []string{"docker"}},
		{Name: "ciconf", Patterns: []string{".github/*.yml"}, Command: []string{"ciconf"}},
	})
	require.NoError(t, err)

	names := func(tools []Tool) []string {
		out := make([]string, 0, len(tools))
		for _, tool := range tools {
			out = append(out, tool.Name)
		}
		return out
	}

	assert.Equal(t, []string{"py"}, names(reg.Matching("pkg/app/main.py")))
	assert.Equal(t, []string{"docker"}, names(reg.Matching("services/api/Dockerfile")))
	assert.Equal(t, []string{"ciconf"}, names(reg.Matching(".github/release.yml")))
	assert.Empty(t, reg.Matching("README.rst"))

	// Second lookup hits the cache and must agree.
	assert.Equal(t, []string{"py"}, names(reg.Matching("pkg/app/main.py")))
}

func TestArgvSwapsCheckArgsForFixArgs(t *testing.T) {
	fixer := Tool{
		Name:        "fmt",
		Command:     []string{"fmt"},
		CheckArgs:   []string{"--check"},
		FixArgs:     []string{"--write"},
		SupportsFix: true,
	}
	reporter := Tool{Name: "lint", Command: []string{"lint"}, FixArgs: []string{"--fix"}}

	head := []string{"/cache/fmt"}
	assert.Equal(t, []string{"/cache/fmt", "--check", "a.py"}, fixer.Argv(head, []string{"a.py"}, false))
	assert.Equal(t, []string{"/cache/fmt", "--write", "a.py"}, fixer.Argv(head, []string{"a.py"}, true))
	assert.Equal(t, []string{"lint", "a.py"}, reporter.Argv(reporter.Command, []string{"a.py"}, true))
}

func TestArgvWholeTreeIgnoresFiles(t *testing.T) {
	scanner := Tool{
		Name:      "scan",
		Command:   []string{"scan", "--source", "."},
		WholeTree: true,
	}
	argv := scanner.Argv(scanner.Command, []string{"a.py", "b.py"}, false)
	assert.Equal(t, []string{"scan", "--source", "."}, argv)
}
