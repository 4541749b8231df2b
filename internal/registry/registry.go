package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"huskycat/internal/hcerrors"
)

const matchCacheSize = 512

// LicenseClass tiers tools for the execution router's compliance policy.
type LicenseClass string

const (
	LicensePermissive  LicenseClass = "permissive"
	LicenseCopyleft    LicenseClass = "copyleft"
	LicenseConditional LicenseClass = "conditional"
)

// Tool is one catalog entry: an external program the orchestrator can invoke.
// Command is the argv head shared by every run kind; CheckArgs are appended in
// report-only runs and FixArgs take their place when a fixing run is
// requested. WholeTree tools scan the working tree and take no file arguments.
type Tool struct {
	Name        string
	Patterns    []string
	License     LicenseClass
	Command     []string
	CheckArgs   []string
	FixArgs     []string
	SupportsFix bool
	WholeTree   bool
	DependsOn   []string
	Cost        int
}

// Registry is a read-only catalog with a precomputed dependency DAG.
type Registry struct {
	tools  map[string]Tool
	names  []string
	levels [][]string

	matchCache *lru.Cache[string, []string]
}

// Build validates the catalog and precomputes the Kahn level partition.
// Duplicate names, unknown dependencies, and cycles are configuration errors.
func Build(tools []Tool) (*Registry, error) {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, hcerrors.New(hcerrors.KindConfiguration, "tool with empty name")
		}
		if _, dup := byName[name]; dup {
			return nil, hcerrors.New(hcerrors.KindConfiguration, "duplicate tool %q", name)
		}
		t.Name = name
		byName[name] = t
	}
	for _, t := range byName {
		for _, dep := range t.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, hcerrors.New(hcerrors.KindConfiguration,
					"tool %q depends on unregistered tool %q", t.Name, dep)
			}
		}
	}

	levels, err := levelize(byName)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	cache, err := lru.New[string, []string](matchCacheSize)
	if err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindConfiguration, err, "match cache")
	}

	return &Registry{
		tools:      byName,
		names:      names,
		levels:     levels,
		matchCache: cache,
	}, nil
}

// levelize partitions the DAG into Kahn levels. Within a level, tools order
// by estimated cost descending, then alphabetically for determinism. Leftover
// nodes after the sweep form a cycle and are reported in the error.
func levelize(tools map[string]Tool) ([][]string, error) {
	indegree := make(map[string]int, len(tools))
	dependents := make(map[string][]string, len(tools))
	for name, t := range tools {
		indegree[name] += 0
		for _, dep := range t.DependsOn {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var levels [][]string
	placed := 0
	current := readyNames(tools, indegree)
	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)
		next := make(map[string]bool)
		for _, name := range current {
			delete(indegree, name)
			for _, dependent := range dependents[name] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next[dependent] = true
				}
			}
		}
		current = current[:0:0]
		for name := range next {
			current = append(current, name)
		}
		sortLevel(tools, current)
	}

	if placed != len(tools) {
		remaining := make([]string, 0, len(indegree))
		for name := range indegree {
			remaining = append(remaining, name)
		}
		sort.Strings(remaining)
		return nil, hcerrors.New(hcerrors.KindConfiguration,
			"dependency cycle among tools: %s", strings.Join(remaining, ", "))
	}
	return levels, nil
}

func readyNames(tools map[string]Tool, indegree map[string]int) []string {
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sortLevel(tools, ready)
	return ready
}

func sortLevel(tools map[string]Tool, names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := tools[names[i]], tools[names[j]]
		if a.Cost != b.Cost {
			return a.Cost > b.Cost
		}
		return a.Name < b.Name
	})
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name in alphabetic order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Levels returns the topological level partition. Every tool's dependencies
// live in strictly earlier levels.
func (r *Registry) Levels() [][]string {
	out := make([][]string, len(r.levels))
	for i, level := range r.levels {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// Matching returns the tools whose patterns match path, in level order.
// Results are cached per path; the registry is read-only after Build so the
// cache never invalidates.
func (r *Registry) Matching(path string) []Tool {
	if names, ok := r.matchCache.Get(path); ok {
		return r.resolve(names)
	}
	var names []string
	for _, level := range r.levels {
		for _, name := range level {
			if r.toolMatches(r.tools[name], path) {
				names = append(names, name)
			}
		}
	}
	r.matchCache.Add(path, names)
	return r.resolve(names)
}

func (r *Registry) resolve(names []string) []Tool {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) toolMatches(t Tool, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range t.Patterns {
		if strings.ContainsRune(pattern, '/') {
			if ok, err := filepath.Match(pattern, path); err == nil && ok {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// Argv assembles the full invocation from the routed command head. Report
// runs carry CheckArgs; a fixing run replaces them with FixArgs so flags like
// --check never contradict the fixer. Whole-tree tools get no file arguments.
func (t Tool) Argv(head, files []string, fix bool) []string {
	argv := append([]string(nil), head...)
	if fix && t.SupportsFix {
		argv = append(argv, t.FixArgs...)
	} else {
		argv = append(argv, t.CheckArgs...)
	}
	if t.WholeTree {
		return argv
	}
	return append(argv, files...)
}

// String implements fmt.Stringer for logging.
func (t Tool) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.License)
}
