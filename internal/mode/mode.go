package mode

// Mode classifies one orchestrator invocation into a product context.
type Mode string

const (
	GitHooksBlocking    Mode = "git-hooks-blocking"
	GitHooksNonblocking Mode = "git-hooks-nonblocking"
	CI                  Mode = "ci"
	CLI                 Mode = "cli"
	Pipeline            Mode = "pipeline"
	AgentRPC            Mode = "agent-rpc"
)

// Valid reports whether s names a known mode.
func Valid(s string) bool {
	switch Mode(s) {
	case GitHooksBlocking, GitHooksNonblocking, CI, CLI, Pipeline, AgentRPC:
		return true
	}
	return false
}

// Input carries everything the detector inspects. Env is injected so tests
// never mutate the process environment.
type Input struct {
	Flag            string
	Subcommand      string
	StdoutIsTTY     bool
	RepoNonblocking bool
	Env             func(string) string
}

// ciMarkers and gitMarkers are the environment variables that pin the ci and
// git-hook contexts respectively.
var (
	ciMarkers  = []string{"CI", "GITLAB_CI", "GITHUB_ACTIONS", "JENKINS_URL"}
	gitMarkers = []string{"GIT_AUTHOR_NAME", "GIT_INDEX_FILE", "GIT_DIR"}
)

// Detect resolves exactly one mode. Priority, first match wins: explicit
// flag, HUSKYCAT_MODE, the mcp-server subcommand, CI markers, git-hook
// markers, non-tty stdout, and finally interactive cli.
func Detect(in Input) Mode {
	env := in.Env
	if env == nil {
		env = func(string) string { return "" }
	}

	if Valid(in.Flag) {
		return Mode(in.Flag)
	}
	if override := env("HUSKYCAT_MODE"); Valid(override) {
		return Mode(override)
	}
	if in.Subcommand == "mcp-server" {
		return AgentRPC
	}
	for _, marker := range ciMarkers {
		if env(marker) != "" {
			return CI
		}
	}
	for _, marker := range gitMarkers {
		if env(marker) != "" {
			if in.RepoNonblocking {
				return GitHooksNonblocking
			}
			return GitHooksBlocking
		}
	}
	if !in.StdoutIsTTY {
		return Pipeline
	}
	return CLI
}
