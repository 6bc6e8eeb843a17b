package classify

import (
	"fmt"
	"testing"
)

func TestDetectCategoryFirstMatchWins(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		want        string
	}{
		{
			name:  "field show outranks drumline",
			title: "Halftime Drumline Feature",
			want:  "field-show",
		},
		{
			name:  "drumline",
			title: "Indoor Percussion Semifinals Run",
			want:  "drumline",
		},
		{
			name:        "match in description",
			title:       "Saturday Performance",
			description: "Full color guard feature from the winter season",
			want:        "winter-guard",
		},
		{
			name:  "parade",
			title: "Rose Parade Street March",
			want:  "parade",
		},
		{
			name:  "no match falls back",
			title: "Random vlog about travel",
			want:  CategorySlugOther,
		},
		{
			name:  "case insensitive",
			title: "WIND ENSEMBLE Spring Concert",
			want:  "concert",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectCategory(tc.title, tc.description); got != tc.want {
				t.Errorf("DetectCategory(%q, %q) = %q, want %q", tc.title, tc.description, got, tc.want)
			}
		})
	}
}

func TestDetectCategoryDeterministic(t *testing.T) {
	title := "Grand Nationals Halftime Feature"
	description := "Finals performance with the full drumline"
	first := DetectCategory(title, description)
	for i := 0; i < 50; i++ {
		if got := DetectCategory(title, description); got != first {
			t.Fatalf("iteration %d produced %q, first run produced %q", i, got, first)
		}
	}
}

func TestExtractEvent(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		wantName    string
		wantYear    int
	}{
		{
			name:     "named event with year",
			title:    "Grand Nationals 2023 Finals Performance",
			wantName: "Grand Nationals",
			wantYear: 2023,
		},
		{
			name:        "event in description",
			title:       "Full run",
			description: "Recorded at Bands of America 2022",
			wantName:    "Bands of America",
			wantYear:    2022,
		},
		{
			name:     "bare year in title",
			title:    "senior night performance 2024",
			wantYear: 2024,
		},
		{
			name:        "bare year only counts from title",
			title:       "senior night performance",
			description: "uploaded in 2024",
		},
		{
			name:  "nothing",
			title: "band room tour",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := ExtractEvent(tc.title, tc.description)
			if event.Name != tc.wantName {
				t.Errorf("event name = %q, want %q", event.Name, tc.wantName)
			}
			if event.Year != tc.wantYear {
				t.Errorf("event year = %d, want %d", event.Year, tc.wantYear)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		viewCount   int64
		want        int
	}{
		{
			name:  "neutral text scores base",
			title: "saturday performance",
			want:  50,
		},
		{
			name:  "relevant keywords add once each",
			title: "Marching Band marching band halftime",
			want:  63,
		},
		{
			name:  "irrelevant keywords subtract",
			title: "marching band reaction",
			want:  43,
		},
		{
			name:      "view bonus capped at ten",
			title:     "plain video",
			viewCount: 50_000_000,
			want:      60,
		},
		{
			name:      "small view counts earn nothing",
			title:     "plain video",
			viewCount: 900,
			want:      50,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := QualityScore(tc.title, tc.description, tc.viewCount); got != tc.want {
				t.Errorf("QualityScore = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestQualityScoreBounded(t *testing.T) {
	allRelevant := "marching band drum corps drumline field show dci bands of america halftime color guard championship finals competition"
	allIrrelevant := "reaction unboxing gameplay tutorial lyrics podcast"
	views := []int64{0, 1, 1000, 1001, 5000, 1_000_000, 1 << 40}
	for _, count := range views {
		t.Run(fmt.Sprintf("views_%d", count), func(t *testing.T) {
			for _, text := range []string{allRelevant, allIrrelevant, allRelevant + " " + allIrrelevant, ""} {
				score := QualityScore(text, text, count)
				if score < 0 || score > 100 {
					t.Errorf("score %d out of range for text %q", score, text)
				}
			}
		})
	}
}

func TestGenerateTags(t *testing.T) {
	event := Event{Name: "Grand Nationals", Year: 2023}
	tags := GenerateTags(
		[]string{"Marching Band", "ok", "  Drumline  ", "x", string(make([]byte, 60))},
		"Grand Nationals 2023 Marching Band Finals",
		"field-show",
		event,
	)

	want := map[string]bool{
		"marching band":   true,
		"drumline":        true,
		"field-show":      true,
		"grand nationals": true,
		"2023":            true,
		"finals":          true,
	}
	got := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if got[tag] {
			t.Errorf("duplicate tag %q", tag)
		}
		got[tag] = true
	}
	for tag := range want {
		if !got[tag] {
			t.Errorf("missing tag %q in %v", tag, tags)
		}
	}
	if got["ok"] || got["x"] {
		t.Errorf("short tags should be filtered: %v", tags)
	}
}

func TestGenerateTagsCap(t *testing.T) {
	var provided []string
	for i := 0; i < 40; i++ {
		provided = append(provided, fmt.Sprintf("tag-number-%02d", i))
	}
	tags := GenerateTags(provided, "marching band", CategorySlugOther, Event{})
	if len(tags) != 20 {
		t.Errorf("expected 20 tags, got %d", len(tags))
	}
}
