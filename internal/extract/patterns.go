package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/avolkov/geochat/internal/domain"
)

// textPattern is one entry in the prioritized fallback cascade. Patterns
// are evaluated in order; all matches of a pattern are collected before
// the next pattern runs. Keeping the cascade as an explicit list keeps
// future pattern additions local and testable in isolation.
type textPattern struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) domain.ParsedLocation
}

// Cascade patterns, in priority order:
//
//	**NAME:** Located at ADDRESS. It has a rating of RATING stars
//	The closest seems to be / Here is / Another option is NAME at ADDRESS.
//	* NAME: ADDRESS. Rating: RATING
var fallbackPatterns = []textPattern{
	{
		name: "bold_name",
		re:   regexp.MustCompile(`\*\*(.+?):\*\*\s*Located at\s+(.+?)\.\s*It has a rating of\s+(\d+(?:\.\d+)?)\s+stars`),
		build: func(m []string) domain.ParsedLocation {
			return domain.ParsedLocation{
				Name:    strings.TrimSpace(m[1]),
				Address: strings.TrimSpace(m[2]),
				Rating:  parseRating(m[3]),
			}
		},
	},
	{
		name: "conversational",
		re:   regexp.MustCompile(`(?:The closest seems to be|Here is|Another option is)\s+(.+?)\s+at\s+(.+?)\.`),
		build: func(m []string) domain.ParsedLocation {
			return domain.ParsedLocation{
				Name:    strings.TrimSpace(m[1]),
				Address: strings.TrimSpace(m[2]),
			}
		},
	},
	{
		name: "bulleted",
		re:   regexp.MustCompile(`(?m)^\s*\*\s+(.+?):\s+(.+?)\.\s*Rating:\s*(\d+(?:\.\d+)?)`),
		build: func(m []string) domain.ParsedLocation {
			return domain.ParsedLocation{
				Name:    strings.TrimSpace(m[1]),
				Address: strings.TrimSpace(m[2]),
				Rating:  parseRating(m[3]),
			}
		},
	},
}

func parseRating(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
