// Package render turns the aggregated data and generated insight
// sections into the final HTML report.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/santaclaude2025/insights/pkg/aggregate"
)

type barRow struct {
	Label string
	Pct   float64
	Value int
	Color string
}

// barRows builds chart rows sorted by count. When order is given the
// keys are laid out in that fixed order instead, skipping zeroes.
func barRows(counts map[string]int, color string, maxItems int, order []string) []barRow {
	type kv struct {
		k string
		v int
	}
	var items []kv
	if order != nil {
		for _, k := range order {
			if counts[k] > 0 {
				items = append(items, kv{k, counts[k]})
			}
		}
	} else {
		for k, v := range counts {
			items = append(items, kv{k, v})
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].v != items[j].v {
				return items[i].v > items[j].v
			}
			return items[i].k < items[j].k
		})
		if len(items) > maxItems {
			items = items[:maxItems]
		}
	}
	if len(items) == 0 {
		return nil
	}
	maxVal := 0
	for _, it := range items {
		if it.v > maxVal {
			maxVal = it.v
		}
	}
	rows := make([]barRow, len(items))
	for i, it := range items {
		pct := 0.0
		if maxVal > 0 {
			pct = float64(it.v) / float64(maxVal) * 100
		}
		rows[i] = barRow{Label: displayName(it.k), Pct: pct, Value: it.v, Color: color}
	}
	return rows
}

var responseBuckets = []struct {
	label string
	upper float64
}{
	{"2-10s", 10},
	{"10-30s", 30},
	{"30s-1m", 60},
	{"1-2m", 120},
	{"2-5m", 300},
	{"5-15m", 900},
	{">15m", math.Inf(1)},
}

func responseTimeRows(times []float64) []barRow {
	if len(times) == 0 {
		return nil
	}
	counts := make([]int, len(responseBuckets))
	for _, t := range times {
		for i, b := range responseBuckets {
			if t < b.upper {
				counts[i]++
				break
			}
		}
	}
	maxVal := 1
	for _, c := range counts {
		if c > maxVal {
			maxVal = c
		}
	}
	rows := make([]barRow, len(responseBuckets))
	for i, b := range responseBuckets {
		rows[i] = barRow{
			Label: b.label,
			Pct:   float64(counts[i]) / float64(maxVal) * 100,
			Value: counts[i],
			Color: "#6366f1",
		}
	}
	return rows
}

var dayPeriods = []struct {
	label    string
	from, to int
}{
	{"Morning (6-12)", 6, 12},
	{"Afternoon (12-18)", 12, 18},
	{"Evening (18-24)", 18, 24},
	{"Night (0-6)", 0, 6},
}

func timeOfDayRows(hours []int) []barRow {
	if len(hours) == 0 {
		return nil
	}
	counts := make([]int, len(dayPeriods))
	for _, h := range hours {
		for i, p := range dayPeriods {
			if h >= p.from && h < p.to {
				counts[i]++
			}
		}
	}
	maxVal := 1
	for _, c := range counts {
		if c > maxVal {
			maxVal = c
		}
	}
	rows := make([]barRow, len(dayPeriods))
	for i, p := range dayPeriods {
		rows[i] = barRow{
			Label: p.label,
			Pct:   float64(counts[i]) / float64(maxVal) * 100,
			Value: counts[i],
			Color: "#8b5cf6",
		}
	}
	return rows
}

var boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)
var bulletRe = regexp.MustCompile(`(?m)^- `)

// mdBold escapes text and converts **bold** markers to <strong>.
func mdBold(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(boldRe.ReplaceAllString(escaped, "<strong>$1</strong>"))
}

// narrative renders multi-paragraph prose with bold markers, line
// breaks and leading-dash bullets.
func narrative(s string) template.HTML {
	if s == "" {
		return ""
	}
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		escaped := template.HTMLEscapeString(p)
		escaped = boldRe.ReplaceAllString(escaped, "<strong>$1</strong>")
		escaped = bulletRe.ReplaceAllString(escaped, "&bull; ")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return template.HTML(strings.Join(out, "\n"))
}

// Section payload shapes, one per report prompt.

type glanceSection struct {
	WhatsWorking       string `json:"whats_working"`
	WhatsHindering     string `json:"whats_hindering"`
	QuickWins          string `json:"quick_wins"`
	AmbitiousWorkflows string `json:"ambitious_workflows"`
}

type areasSection struct {
	Areas []struct {
		Name         string `json:"name"`
		SessionCount int    `json:"session_count"`
		Description  string `json:"description"`
	} `json:"areas"`
}

type styleSection struct {
	Narrative  string `json:"narrative"`
	KeyPattern string `json:"key_pattern"`
}

type winsSection struct {
	Intro               string `json:"intro"`
	ImpressiveWorkflows []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"impressive_workflows"`
}

type frictionSection struct {
	Intro      string `json:"intro"`
	Categories []struct {
		Category    string   `json:"category"`
		Description string   `json:"description"`
		Examples    []string `json:"examples"`
	} `json:"categories"`
}

type suggestionsSection struct {
	ClaudeMDAdditions []struct {
		Addition       string `json:"addition"`
		Why            string `json:"why"`
		PromptScaffold string `json:"prompt_scaffold"`
	} `json:"claude_md_additions"`
	FeaturesToTry []struct {
		Feature     string `json:"feature"`
		OneLiner    string `json:"one_liner"`
		WhyForYou   string `json:"why_for_you"`
		ExampleCode string `json:"example_code"`
	} `json:"features_to_try"`
	UsagePatterns []struct {
		Title          string `json:"title"`
		Suggestion     string `json:"suggestion"`
		Detail         string `json:"detail"`
		CopyablePrompt string `json:"copyable_prompt"`
	} `json:"usage_patterns"`
}

type horizonSection struct {
	Intro         string `json:"intro"`
	Opportunities []struct {
		Title          string `json:"title"`
		WhatsPossible  string `json:"whats_possible"`
		HowToTry       string `json:"how_to_try"`
		CopyablePrompt string `json:"copyable_prompt"`
	} `json:"opportunities"`
}

type funSection struct {
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
}

type pageData struct {
	StatsLine      string
	DateStart      string
	DateEnd        string
	Messages       string
	LinesAdded     string
	FilesModified  string
	DaysActive     int
	MessagesPerDay float64

	Glance      *glanceSection
	Areas       *areasSection
	Style       *styleSection
	Wins        *winsSection
	Friction    *frictionSection
	Suggestions *suggestionsSection
	Horizon     *horizonSection
	Fun         *funSection

	GoalsChart        []barRow
	ToolsChart        []barRow
	LangsChart        []barRow
	TypesChart        []barRow
	OutcomesChart     []barRow
	SatisfactionChart []barRow
	HelpfulnessChart  []barRow
	FrictionChart     []barRow
	SuccessChart      []barRow
	ResponseChart     []barRow
	TimeOfDayChart    []barRow
	ErrorsChart       []barRow

	GeneratedAt string
	Model       string
}

func decodeSection[T any](sections map[string]json.RawMessage, name string) *T {
	raw, ok := sections[name]
	if !ok {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// Report renders the full HTML page.
func Report(d *aggregate.Data, sections map[string]json.RawMessage, model string, maxTopItems int, now time.Time) (string, error) {
	statsParts := []string{
		fmt.Sprintf("%s messages", humanize.Comma(int64(d.TotalMessages))),
		fmt.Sprintf("%d sessions", d.TotalSessions),
		fmt.Sprintf("%dh total", int(math.Round(d.TotalDurationHours))),
		fmt.Sprintf("%d commits", d.GitCommits),
		fmt.Sprintf("%d days active", d.DaysActive),
	}

	page := pageData{
		StatsLine:      strings.Join(statsParts, " · "),
		DateStart:      d.DateRange.Start,
		DateEnd:        d.DateRange.End,
		Messages:       humanize.Comma(int64(d.TotalMessages)),
		LinesAdded:     humanize.Comma(int64(d.TotalLinesAdded)),
		FilesModified:  humanize.Comma(int64(d.TotalFilesModified)),
		DaysActive:     d.DaysActive,
		MessagesPerDay: d.MessagesPerDay,

		Glance:      decodeSection[glanceSection](sections, "at_a_glance"),
		Areas:       decodeSection[areasSection](sections, "project_areas"),
		Style:       decodeSection[styleSection](sections, "interaction_style"),
		Wins:        decodeSection[winsSection](sections, "what_works"),
		Friction:    decodeSection[frictionSection](sections, "friction_analysis"),
		Suggestions: decodeSection[suggestionsSection](sections, "suggestions"),
		Horizon:     decodeSection[horizonSection](sections, "on_the_horizon"),
		Fun:         decodeSection[funSection](sections, "fun_ending"),

		GoalsChart: barRows(d.GoalCategories, "#2563eb", maxTopItems, nil),
		ToolsChart: barRows(d.ToolCounts, "#10b981", maxTopItems, nil),
		LangsChart: barRows(d.Languages, "#f59e0b", maxTopItems, nil),
		TypesChart: barRows(d.SessionTypes, "#8b5cf6", 8, nil),
		OutcomesChart: barRows(d.Outcomes, "#10b981", 8,
			[]string{"not_achieved", "partially_achieved", "mostly_achieved", "fully_achieved", "unclear_from_transcript"}),
		SatisfactionChart: barRows(d.Satisfaction, "#6366f1", 8,
			[]string{"frustrated", "dissatisfied", "likely_satisfied", "satisfied", "happy", "delighted"}),
		HelpfulnessChart: barRows(d.Helpfulness, "#14b8a6", 8,
			[]string{"unhelpful", "slightly_helpful", "moderately_helpful", "very_helpful", "essential"}),
		FrictionChart:  barRows(d.Friction, "#ef4444", 8, nil),
		SuccessChart:   barRows(d.Success, "#22c55e", 8, nil),
		ResponseChart:  responseTimeRows(d.ResponseTimes),
		TimeOfDayChart: timeOfDayRows(d.MessageHours),
		ErrorsChart:    barRows(d.ToolErrorCategories, "#f97316", 8, nil),

		GeneratedAt: now.Format("2006-01-02 15:04"),
		Model:       model,
	}

	var b strings.Builder
	if err := pageTemplate.Execute(&b, &page); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return b.String(), nil
}
