package classify

// CategorySlugOther is the fallback slug when no rule matches.
const CategorySlugOther = "other"

// CategoryRule maps a set of text patterns to a category slug. Rules are
// evaluated in table order and the first rule with any matching pattern wins.
type CategoryRule struct {
	Slug     string
	Patterns []string
}

// categoryRules is the ordered detection table. Some recognizable content
// kinds intentionally have no slug yet and fall through to "other".
var categoryRules = []CategoryRule{
	{Slug: "field-show", Patterns: []string{"field show", "halftime", "pregame show", "marching show"}},
	{Slug: "drumline", Patterns: []string{"drumline", "drum line", "indoor percussion", "battery feature", "drum battle"}},
	{Slug: "winter-guard", Patterns: []string{"winter guard", "winterguard", "color guard", "colorguard", "guard feature"}},
	{Slug: "parade", Patterns: []string{"parade", "street march", "marching in review"}},
	{Slug: "concert", Patterns: []string{"concert band", "wind ensemble", "symphonic band", "indoor concert"}},
	{Slug: "rehearsal", Patterns: []string{"rehearsal", "run-through", "sectional", "band camp"}},
}

// relevantKeywords carries the per-pattern quality bonus. Each pattern is
// counted at most once regardless of how often it appears.
var relevantKeywords = []weightedPattern{
	{pattern: "marching band", weight: 8},
	{pattern: "drum corps", weight: 8},
	{pattern: "drumline", weight: 6},
	{pattern: "field show", weight: 6},
	{pattern: "dci", weight: 6},
	{pattern: "bands of america", weight: 6},
	{pattern: "halftime", weight: 5},
	{pattern: "color guard", weight: 5},
	{pattern: "championship", weight: 4},
	{pattern: "finals", weight: 4},
	{pattern: "competition", weight: 3},
}

// irrelevantKeywords penalize text that usually indicates off-topic uploads.
var irrelevantKeywords = []weightedPattern{
	{pattern: "reaction", weight: 15},
	{pattern: "unboxing", weight: 15},
	{pattern: "gameplay", weight: 20},
	{pattern: "tutorial", weight: 10},
	{pattern: "lyrics", weight: 10},
	{pattern: "podcast", weight: 8},
}

type weightedPattern struct {
	pattern string
	weight  int
}
