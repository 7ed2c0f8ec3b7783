package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pulse/api/internal/store"
)

// Rank returns the feedback items sorted by vote count descending. The sort
// is stable: items with equal counts keep their original insertion order,
// which makes exports reproducible.
func Rank(items []store.FeedbackItem) []store.FeedbackItem {
	ranked := make([]store.FeedbackItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Votes > ranked[j].Votes
	})
	return ranked
}

// RenderMarkdown produces the session report: header with code and
// timestamps, then the ranked feedback with nested comments. Comments stay
// in insertion order; only feedback items are re-ranked.
func RenderMarkdown(snap store.SessionSnapshot, exportedAt time.Time) string {
	ranked := Rank(snap.Feedbacks)

	var b strings.Builder
	b.WriteString("# Workshop Feedback Session\n\n")
	fmt.Fprintf(&b, "**Session Code:** %s\n", snap.Code)
	fmt.Fprintf(&b, "**Created:** %s\n", snap.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Exported:** %s\n\n", exportedAt.Format(time.RFC3339))
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "## Feedback (%d items)\n\n", len(ranked))

	for i, item := range ranked {
		fmt.Fprintf(&b, "### %d. %s\n", i+1, item.Text)
		fmt.Fprintf(&b, "**Votes:** %d\n\n", item.Votes)
		if len(item.Comments) > 0 {
			b.WriteString("**Comments:**\n")
			for _, c := range item.Comments {
				fmt.Fprintf(&b, "- %s (↑%d)\n", c.Text, c.Votes)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Filename suggests a download name like feedback-12345678-20260901-153000.md
func Filename(code string, exportedAt time.Time, extension string) string {
	return fmt.Sprintf("feedback-%s-%s.%s", sanitizeFilename(code), exportedAt.Format("20060102-150405"), extension)
}

// sanitizeFilename keeps letters, digits, hyphens and underscores, mapping
// spaces to hyphens and dropping everything else.
func sanitizeFilename(name string) string {
	result := ""
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "session"
	}
	return result
}
