package classify

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	baseScore    = 50
	minScore     = 0
	maxScore     = 100
	maxTags      = 20
	minTagLength = 3
	maxTagLength = 49
)

// Event is an extracted competition or performance identity.
type Event struct {
	Name string
	Year int
}

var (
	// eventPattern matches "<Name> <year>" where the name is one or more
	// capitalized words, e.g. "Grand Nationals 2023".
	eventPattern = regexp.MustCompile(`\b([A-Z][\w&'.-]*(?:\s+(?:of\s+)?[A-Z][\w&'.-]*){0,4})\s+((?:19|20)\d{2})\b`)
	yearPattern  = regexp.MustCompile(`\b20\d{2}\b`)
)

// DetectCategory returns the slug of the first rule matching the lowercased
// title and description, or "other" when nothing matches.
func DetectCategory(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, rule := range categoryRules {
		for _, pattern := range rule.Patterns {
			if strings.Contains(text, pattern) {
				return rule.Slug
			}
		}
	}
	return CategorySlugOther
}

// ExtractEvent pulls an event name and year from the title and description.
// When no named event is present, a bare year token in the title alone still
// yields a year.
func ExtractEvent(title, description string) Event {
	if match := eventPattern.FindStringSubmatch(title + " " + description); match != nil {
		year, err := strconv.Atoi(match[2])
		if err == nil {
			return Event{Name: strings.TrimSpace(match[1]), Year: year}
		}
	}
	if match := yearPattern.FindString(title); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			return Event{Year: year}
		}
	}
	return Event{}
}

// QualityScore rates a video from its text and view count. The result is
// always within [0,100].
func QualityScore(title, description string, viewCount int64) int {
	text := strings.ToLower(title + " " + description)
	score := baseScore
	for _, kw := range relevantKeywords {
		if strings.Contains(text, kw.pattern) {
			score += kw.weight
		}
	}
	for _, kw := range irrelevantKeywords {
		if strings.Contains(text, kw.pattern) {
			score -= kw.weight
		}
	}
	score += viewBonus(viewCount)
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// viewBonus maps view count onto a logarithmic bonus capped at 10 points.
// Counts at or below 1000 earn nothing.
func viewBonus(viewCount int64) int {
	if viewCount <= 1000 {
		return 0
	}
	bonus := math.Log10(float64(viewCount)/1000) * 5
	return int(math.Min(10, bonus))
}

// GenerateTags unions filtered provider tags, the detected category, the
// event, and band terminology found in the title. At most 20 tags are
// returned and ordering carries no meaning.
func GenerateTags(providerTags []string, title, category string, event Event) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, maxTags)
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if len(tag) < minTagLength || len(tag) > maxTagLength {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		if len(tags) >= maxTags {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, tag := range providerTags {
		add(tag)
	}
	if category != CategorySlugOther {
		add(category)
	}
	if event.Name != "" {
		add(event.Name)
	}
	if event.Year != 0 {
		add(strconv.Itoa(event.Year))
	}
	lowered := strings.ToLower(title)
	for _, kw := range relevantKeywords {
		if strings.Contains(lowered, kw.pattern) {
			add(kw.pattern)
		}
	}
	return tags
}
