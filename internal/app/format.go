package app

import (
	"fmt"
	"strings"

	"github.com/rbright/mindwell/internal/ipc"
	"github.com/rbright/mindwell/internal/screening"
)

const barWidth = 20

func formatResult(snap *ipc.Snapshot) string {
	if snap == nil || snap.Result == nil {
		if snap != nil && snap.Processing {
			return "analyzing"
		}
		return "no screening result"
	}
	res := snap.Result
	var b strings.Builder
	fmt.Fprintf(&b, "score: %.1f/%d %s (%s)\n", res.Score, screening.MaxScore, screening.Bar(res.Score, barWidth), screening.Tier(res.Score))
	fmt.Fprintf(&b, "validation: %s", res.Validation)
	if s := strings.TrimSpace(res.Summary); s != "" {
		fmt.Fprintf(&b, "\nsummary: %s", s)
	}
	return b.String()
}

func formatHelplines(helplines []screening.Helpline) string {
	if len(helplines) == 0 {
		return "no helplines available"
	}
	lines := make([]string, 0, len(helplines))
	for _, h := range helplines {
		line := fmt.Sprintf("%s\t%s", h.Name, h.Number)
		if h.Description != "" {
			line += "\t" + h.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
