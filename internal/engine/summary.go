package engine

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/artpar/handel/internal/core/resolve"
	"github.com/artpar/handel/internal/core/version"
	"github.com/artpar/handel/internal/shell/volumes"
	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"
)

// writeSummary prints what the run decided.
func writeSummary(w io.Writer, res *resolve.Result, outcomes []volumes.Outcome, output string, now time.Time) {
	fmt.Fprintf(w, "Required services (start order): %s\n", strings.Join(res.Order, ", "))

	if len(res.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent local images:")
		lines := make([]string, 0, len(res.Recent))
		for _, r := range res.Recent {
			lines = append(lines, fmt.Sprintf("%s | %s | %s", r.Service, r.Tag, humanize.RelTime(r.BuiltAt, now, "ago", "from now")))
		}
		fmt.Fprintln(w, indent(columnize.SimpleFormat(lines)))
	}

	fmt.Fprintln(w, "\nVersions:")
	lines := []string{"SERVICE | IMAGE | SOURCE"}
	for _, rs := range res.Resolved {
		lines = append(lines, fmt.Sprintf("%s | %s | %s", rs.Name, rs.Image, describe(res.Decisions[rs.Name], now)))
	}
	fmt.Fprintln(w, indent(columnize.SimpleFormat(lines)))

	if len(outcomes) > 0 {
		fmt.Fprintln(w, "\nVolumes:")
		lines := make([]string, 0, len(outcomes))
		for _, o := range outcomes {
			status := string(o.Status)
			if o.Status == volumes.StatusExtracted {
				status = fmt.Sprintf("%s (%s)", status, humanize.Comma(int64(o.Files))+" files")
			} else if o.Message != "" {
				status = fmt.Sprintf("%s (%s)", status, o.Message)
			}
			lines = append(lines, fmt.Sprintf("%s | %s | %s", o.Name, o.Target, status))
		}
		fmt.Fprintln(w, indent(columnize.SimpleFormat(lines)))
	}

	fmt.Fprintf(w, "\nWrote %s with %d services\n", output, len(res.Resolved))
}

func describe(d version.Decision, now time.Time) string {
	if d.Source == version.SourceLocal {
		return fmt.Sprintf("local, built %s", humanize.RelTime(d.BuiltAt, now, "ago", "from now"))
	}
	return string(d.Source)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
