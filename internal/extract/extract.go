// Package extract recovers structured location data from assistant reply
// text. Upstream replies are model-generated and not reliably well-formed
// JSON, so extraction degrades through decreasingly structured assumptions
// instead of failing outright: a JSON-first structured path, then an
// ordered text-pattern cascade over the raw text.
package extract

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/avolkov/geochat/internal/domain"
)

// Field defaults for structured entries whose keys are absent. A key that
// is present keeps its value, even when empty.
const (
	defaultName    = "Unknown Name"
	defaultAddress = "No address provided"
)

// Result is the outcome of extracting one completed turn.
type Result struct {
	// Text is the visible turn text. For structured replies this is the
	// spoken response; otherwise the input text, unmodified.
	Text string
	// Locations are the extracted places in discovery order, deduplicated
	// by address.
	Locations []domain.ParsedLocation
	// Structured reports whether the structured path produced the result.
	Structured bool
}

// Extractor parses completed turn text into locations.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// mapResponse is the structured reply body, optionally fenced inside the
// turn text. Pointer fields distinguish absent keys from empty values.
type mapResponse struct {
	SpokenResponse *string     `json:"spoken_response"`
	MapData        *[]mapEntry `json:"map_data"`
}

type mapEntry struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Rating  any     `json:"rating"`
}

// Extract runs the structured path first and falls back to the pattern
// cascade over the original raw text. Parse failures never propagate; they
// only mean fewer results.
func (e *Extractor) Extract(text string) Result {
	if res, ok := e.structured(text); ok {
		return res
	}
	locations := e.cascade(text)
	if len(locations) > 0 {
		e.logger.Debug("locations extracted via text fallback", "count", len(locations))
	}
	return Result{Text: text, Locations: locations}
}

// structured attempts the JSON-first path. A reply that parses but lacks
// either required key is not a failure of structured intent, just not this
// shape; it falls through to the cascade. A present-but-empty map_data
// array is honored as an intentional "no locations found" reply.
func (e *Extractor) structured(text string) (Result, bool) {
	body := stripFences(text)
	if !strings.HasPrefix(body, "{") {
		return Result{}, false
	}

	var resp mapResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		e.logger.Debug("structured parse failed, falling back to patterns", "error", err)
		return Result{}, false
	}
	if resp.SpokenResponse == nil || resp.MapData == nil {
		return Result{}, false
	}

	locations := make([]domain.ParsedLocation, 0, len(*resp.MapData))
	seen := make(map[string]struct{}, len(*resp.MapData))
	for _, entry := range *resp.MapData {
		loc := domain.ParsedLocation{Rating: ratingValue(entry.Rating)}
		if entry.Name == nil {
			loc.Name = defaultName
		} else {
			loc.Name = strings.TrimSpace(*entry.Name)
		}
		if entry.Address == nil {
			loc.Address = defaultAddress
		} else {
			loc.Address = strings.TrimSpace(*entry.Address)
		}
		if _, dup := seen[loc.Address]; dup {
			continue
		}
		seen[loc.Address] = struct{}{}
		locations = append(locations, loc)
	}

	e.logger.Debug("structured reply parsed", "locations", len(locations))
	return Result{
		Text:       *resp.SpokenResponse,
		Locations:  locations,
		Structured: true,
	}, true
}

// cascade applies the fallback patterns in priority order. The dedup key
// is the trimmed address: a candidate whose address was already claimed by
// a higher-priority pattern (or an earlier match) is discarded.
func (e *Extractor) cascade(text string) []domain.ParsedLocation {
	var locations []domain.ParsedLocation
	seen := make(map[string]struct{})

	for _, p := range fallbackPatterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		for _, m := range matches {
			loc := p.build(m)
			if loc.Address == "" {
				continue
			}
			if _, dup := seen[loc.Address]; dup {
				continue
			}
			seen[loc.Address] = struct{}{}
			locations = append(locations, loc)
		}
		if len(matches) > 0 {
			e.logger.Debug("pattern matched", "pattern", p.name, "matches", len(matches))
		}
	}

	return locations
}

// stripFences removes a surrounding markdown code fence (```json or bare
// ```) and whitespace so fenced structured replies still parse.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ratingValue coerces a structured rating field. Missing or non-numeric
// ratings become 0.
func ratingValue(v any) float64 {
	switch r := v.(type) {
	case float64:
		if r < 0 {
			return 0
		}
		return r
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	default:
		return 0
	}
}
