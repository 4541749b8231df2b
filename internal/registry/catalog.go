package registry

import "huskycat/internal/config"

// FastCostMax is the cost ceiling for the pre-commit "fast" tool filter.
const FastCostMax = 3

// DefaultCatalog returns the builtin tool entries. Dependency edges encode
// the formatter-before-linter-before-checker convention so fixers never race
// reporters on the same files.
func DefaultCatalog() []Tool {
	return []Tool{
		{
			Name:        "black",
			Patterns:    []string{"*.py", "*.pyi"},
			License:     LicensePermissive,
			Command:     []string{"black", "--quiet"},
			CheckArgs:   []string{"--check"},
			SupportsFix: true,
			Cost:        2,
		},
		{
			Name:        "ruff",
			Patterns:    []string{"*.py", "*.pyi"},
			License:     LicensePermissive,
			Command:     []string{"ruff", "check"},
			FixArgs:     []string{"--fix"},
			SupportsFix: true,
			DependsOn:   []string{"black"},
			Cost:        3,
		},
		{
			Name:      "mypy",
			Patterns:  []string{"*.py"},
			License:   LicensePermissive,
			Command:   []string{"mypy", "--no-error-summary"},
			DependsOn: []string{"ruff"},
			Cost:      8,
		},
		{
			Name:        "gofmt",
			Patterns:    []string{"*.go"},
			License:     LicensePermissive,
			Command:     []string{"gofmt"},
			CheckArgs:   []string{"-l"},
			FixArgs:     []string{"-w"},
			SupportsFix: true,
			Cost:        1,
		},
		{
			Name:      "go-vet",
			Patterns:  []string{"*.go"},
			License:   LicensePermissive,
			Command:   []string{"go", "vet"},
			DependsOn: []string{"gofmt"},
			Cost:      5,
		},
		{
			Name:        "prettier",
			Patterns:    []string{"*.js", "*.jsx", "*.ts", "*.tsx", "*.css", "*.md"},
			License:     LicensePermissive,
			Command:     []string{"prettier"},
			CheckArgs:   []string{"--check"},
			FixArgs:     []string{"--write"},
			SupportsFix: true,
			Cost:        2,
		},
		{
			Name:        "eslint",
			Patterns:    []string{"*.js", "*.jsx", "*.ts", "*.tsx"},
			License:     LicensePermissive,
			Command:     []string{"eslint"},
			FixArgs:     []string{"--fix"},
			SupportsFix: true,
			DependsOn:   []string{"prettier"},
			Cost:        4,
		},
		{
			Name:     "shellcheck",
			Patterns: []string{"*.sh", "*.bash"},
			License:  LicenseCopyleft,
			Command:  []string{"shellcheck", "--format=gcc"},
			Cost:     3,
		},
		{
			Name:     "yamllint",
			Patterns: []string{"*.yaml", "*.yml"},
			License:  LicenseCopyleft,
			Command:  []string{"yamllint", "--format", "parsable"},
			Cost:     2,
		},
		{
			Name:     "hadolint",
			Patterns: []string{"Dockerfile", "Dockerfile.*", "*.dockerfile"},
			License:  LicenseCopyleft,
			Command:  []string{"hadolint"},
			Cost:     2,
		},
		{
			Name:      "gitleaks",
			Patterns:  []string{"*"},
			License:   LicensePermissive,
			Command:   []string{"gitleaks", "detect", "--no-banner", "--no-git", "--source", "."},
			WholeTree: true,
			Cost:      6,
		},
		{
			Name:      "semgrep",
			Patterns:  []string{"*.py", "*.go", "*.js", "*.ts", "*.java", "*.rb"},
			License:   LicenseConditional,
			Command:   []string{"semgrep", "scan", "--quiet", "--error"},
			DependsOn: []string{"gitleaks"},
			Cost:      9,
		},
	}
}

// FromSpec converts a user config entry to a catalog Tool. License defaults
// to conditional so unknown tools never route through an embedded copy.
func FromSpec(spec config.ToolSpec) Tool {
	license := LicenseClass(spec.License)
	switch license {
	case LicensePermissive, LicenseCopyleft, LicenseConditional:
	default:
		license = LicenseConditional
	}
	cost := spec.Cost
	if cost <= 0 {
		cost = 5
	}
	return Tool{
		Name:        spec.Name,
		Patterns:    spec.Match,
		License:     license,
		Command:     spec.Command,
		CheckArgs:   spec.CheckArgs,
		FixArgs:     spec.FixArgs,
		SupportsFix: spec.SupportsFix,
		WholeTree:   spec.WholeTree,
		DependsOn:   spec.DependsOn,
		Cost:        cost,
	}
}

// Merge combines the builtin catalog with user tools, dropping disabled names.
func Merge(builtin []Tool, specs []config.ToolSpec, disabled []string) []Tool {
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}
	merged := make([]Tool, 0, len(builtin)+len(specs))
	replaced := make(map[string]bool, len(specs))
	for _, spec := range specs {
		replaced[spec.Name] = true
	}
	for _, t := range builtin {
		if off[t.Name] || replaced[t.Name] {
			continue
		}
		merged = append(merged, t)
	}
	for _, spec := range specs {
		if off[spec.Name] {
			continue
		}
		merged = append(merged, FromSpec(spec))
	}
	return pruneDanglingDeps(merged)
}

// pruneDanglingDeps removes dependency edges pointing at tools that were
// disabled or filtered out, so disabling a formatter never invalidates the
// whole registry.
func pruneDanglingDeps(tools []Tool) []Tool {
	present := make(map[string]bool, len(tools))
	for _, t := range tools {
		present[t.Name] = true
	}
	for i, t := range tools {
		kept := t.DependsOn[:0:0]
		for _, dep := range t.DependsOn {
			if present[dep] {
				kept = append(kept, dep)
			}
		}
		tools[i].DependsOn = kept
	}
	return tools
}
