package result

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"huskycat/internal/hcerrors"
)

// SerializeJSON renders the run with stable field names. ParseRun inverts it.
func SerializeJSON(run *Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "serialize run %s", run.ID)
	}
	return data, nil
}

// ParseRun deserializes a run snapshot produced by SerializeJSON.
func ParseRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "parse run snapshot")
	}
	return &run, nil
}

// SerializeMinimal emits one line per failed or timed-out tool plus a single
// summary line. Total success produces empty output, the contract for quiet
// pre-commit hooks.
func SerializeMinimal(run *Run) string {
	var b strings.Builder
	for _, res := range run.Results {
		switch res.Status {
		case StatusFailed:
			fmt.Fprintf(&b, "%s: %d error(s) on %s\n", res.Tool, res.Errors, res.Target)
		case StatusTimeout:
			fmt.Fprintf(&b, "%s: timed out after %s on %s\n", res.Tool, res.Duration.Round(time.Millisecond), res.Target)
		}
	}
	if run.Success {
		return b.String()
	}
	s := run.Summary
	fmt.Fprintf(&b, "validation failed: %d failed, %d timed out of %d tools\n",
		s.Failed, s.Timeout, s.Total)
	return b.String()
}

var (
	labelSuccess     = color.New(color.FgGreen).SprintFunc()
	labelFailed      = color.New(color.FgRed, color.Bold).SprintFunc()
	labelSkipped     = color.New(color.FgYellow).SprintFunc()
	labelUnavailable = color.New(color.FgHiBlack).SprintFunc()
	headerStyle      = color.New(color.Bold).SprintFunc()
	dimStyle         = color.New(color.FgHiBlack).SprintFunc()
)

// SerializeHuman renders a colored, column-aligned report ordered failed
// first. Results are assumed already in stable order from Finalize.
func SerializeHuman(run *Run) string {
	if len(run.Results) == 0 {
		return "Nothing to validate.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", headerStyle("Validation run"), dimStyle(run.ID))

	toolWidth := len("TOOL")
	targetWidth := len("TARGET")
	for _, res := range run.Results {
		if len(res.Tool) > toolWidth {
			toolWidth = len(res.Tool)
		}
		if len(res.Target) > targetWidth {
			targetWidth = len(res.Target)
		}
	}

	fmt.Fprintf(&b, "  %-*s  %-*s  %-12s  %8s  %6s  %6s\n",
		toolWidth, "TOOL", targetWidth, "TARGET", "STATUS", "TIME", "ERR", "WARN")
	for _, res := range run.Results {
		fmt.Fprintf(&b, "  %-*s  %-*s  %-12s  %8s  %6d  %6d\n",
			toolWidth, res.Tool,
			targetWidth, res.Target,
			statusLabel(res.Status),
			res.Duration.Round(time.Millisecond),
			res.Errors, res.Warnings)
		if res.SkipReason != "" {
			fmt.Fprintf(&b, "  %s\n", dimStyle("    ↳ "+res.SkipReason))
		}
	}

	s := run.Summary
	b.WriteString("\n")
	if run.Success {
		fmt.Fprintf(&b, "%s %d tool(s), %d skipped, %d unavailable in %s\n",
			labelSuccess("PASS"), s.Success, s.Skipped, s.Unavailable,
			s.WallClock.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&b, "%s %d failed, %d timed out, %d passed in %s\n",
			labelFailed("FAIL"), s.Failed, s.Timeout, s.Success,
			s.WallClock.Round(time.Millisecond))
		if hint := fixHint(run); hint != "" {
			fmt.Fprintf(&b, "%s\n", dimStyle(hint))
		}
	}
	return b.String()
}

// statusLabel pads before coloring so ANSI escapes never skew the columns.
func statusLabel(s Status) string {
	padded := fmt.Sprintf("%-12s", string(s))
	switch s {
	case StatusSuccess:
		return labelSuccess(padded)
	case StatusFailed, StatusTimeout:
		return labelFailed(padded)
	case StatusSkipped:
		return labelSkipped(padded)
	default:
		return labelUnavailable(padded)
	}
}

func fixHint(run *Run) string {
	for _, res := range run.Results {
		if res.Status == StatusFailed && !res.Fixed {
			return "hint: rerun with --fix to let fix-capable tools rewrite their findings"
		}
	}
	return ""
}
