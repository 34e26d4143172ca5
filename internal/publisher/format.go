package publisher

import (
	"strings"
	"unicode/utf8"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

const dateLayout = "02.01.2006 15:04"

// BuildStatus renders the announcement text for a paper. Only available
// fields produce a line. The result is bounded by maxChars; links are never
// shortened, the title gives way first.
func BuildStatus(paper *domain.Paper, maxChars int, hashtags []string) string {
	var fixed []string

	if paper.PaperType != "" {
		fixed = append(fixed, "📄 Typ: "+paper.PaperType)
	}
	if !paper.PublishedAt.IsZero() {
		fixed = append(fixed, "📅 Bereitgestellt am: "+paper.PublishedAt.Format(dateLayout))
	}
	if paper.URL != "" {
		fixed = append(fixed, "🔗 ALLRIS: "+paper.URL)
	}
	if paper.FileURL != "" {
		fixed = append(fixed, "🌐 PDF: "+paper.FileURL)
	}
	if len(hashtags) > 0 {
		fixed = append(fixed, strings.Join(hashtags, " "))
	}

	title := paper.Title
	if title == "" {
		title = "Kein Titel"
	}

	// Character budget left for the title line.
	overhead := utf8.RuneCountInString(`🗂️ Titel: ""`)
	for _, line := range fixed {
		overhead += utf8.RuneCountInString(line) + 1 // newline
	}
	if budget := maxChars - overhead; budget > 0 && utf8.RuneCountInString(title) > budget {
		title = truncate(title, budget)
	}

	lines := append([]string{`🗂️ Titel: "` + title + `"`}, fixed...)
	return strings.Join(lines, "\n")
}

func truncate(s string, maxRunes int) string {
	if maxRunes < 1 {
		return "…"
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-1]) + "…"
}
