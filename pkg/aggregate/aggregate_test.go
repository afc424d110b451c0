package aggregate

import (
	"testing"
	"time"

	"github.com/santaclaude2025/insights/pkg/facets"
	"github.com/santaclaude2025/insights/pkg/metrics"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildFoldsMetricsAndFacets(t *testing.T) {
	sms := []metrics.SessionMetrics{
		{
			SessionID:        "aaaaaaaa-1",
			Project:          "projA",
			StartTime:        day("2026-03-02"),
			DurationMinutes:  30,
			UserMessageCount: 10,
			InputTokens:      1000,
			OutputTokens:     500,
			ToolCounts:       map[string]int{"Edit": 3, "Bash": 2},
			Languages:        map[string]int{"Go": 3},
			GitCommits:       2,
			UsesTaskAgent:    true,
			ResponseTimes:    []float64{5, 20},
			MessageHours:     []int{9, 10},
			FirstPrompt:      "fix the build",
		},
		{
			SessionID:        "bbbbbbbb-2",
			Project:          "projA",
			StartTime:        day("2026-03-01"),
			DurationMinutes:  60,
			UserMessageCount: 4,
			ToolCounts:       map[string]int{"Edit": 1},
			ResponseTimes:    []float64{100},
			FirstPrompt:      "explain this code",
		},
	}
	fm := map[string]*facets.Facet{
		"aaaaaaaa-1": {
			SessionID:              "aaaaaaaa-1",
			UnderlyingGoal:         "get the build green",
			GoalCategories:         map[string]int{"debugging": 2, "stale": 0},
			Outcome:                "fully_achieved",
			UserSatisfactionCounts: map[string]int{"happy": 1},
			ClaudeHelpfulness:      "very_helpful",
			SessionType:            "single_task",
			FrictionCounts:         map[string]int{"buggy_code": 1},
			PrimarySuccess:         "good_debugging",
		},
		"bbbbbbbb-2": {
			SessionID:      "bbbbbbbb-2",
			Outcome:        "mostly_achieved",
			PrimarySuccess: "none",
		},
	}

	d := Build(sms, fm, 100)

	if d.TotalSessions != 2 || d.SessionsWithFacets != 2 {
		t.Errorf("sessions = %d/%d", d.TotalSessions, d.SessionsWithFacets)
	}
	if d.TotalMessages != 14 {
		t.Errorf("TotalMessages = %d", d.TotalMessages)
	}
	if d.TotalDurationHours != 1.5 {
		t.Errorf("TotalDurationHours = %v", d.TotalDurationHours)
	}
	if d.ToolCounts["Edit"] != 4 {
		t.Errorf("ToolCounts = %v", d.ToolCounts)
	}
	if d.Projects["projA"] != 2 {
		t.Errorf("Projects = %v", d.Projects)
	}
	if d.DateRange.Start != "2026-03-01" || d.DateRange.End != "2026-03-02" {
		t.Errorf("DateRange = %+v", d.DateRange)
	}
	if d.DaysActive != 2 {
		t.Errorf("DaysActive = %d", d.DaysActive)
	}
	if d.MessagesPerDay != 7.0 {
		t.Errorf("MessagesPerDay = %v", d.MessagesPerDay)
	}
	if d.SessionsUsingTask != 1 {
		t.Errorf("SessionsUsingTask = %d", d.SessionsUsingTask)
	}

	// Zero-valued goal categories are dropped.
	if _, ok := d.GoalCategories["stale"]; ok {
		t.Errorf("zero category kept: %v", d.GoalCategories)
	}
	if d.GoalCategories["debugging"] != 2 {
		t.Errorf("GoalCategories = %v", d.GoalCategories)
	}
	if d.Outcomes["fully_achieved"] != 1 || d.Outcomes["mostly_achieved"] != 1 {
		t.Errorf("Outcomes = %v", d.Outcomes)
	}
	// primary_success "none" never counts as a success.
	if len(d.Success) != 1 || d.Success["good_debugging"] != 1 {
		t.Errorf("Success = %v", d.Success)
	}

	// Median of [5 20 100] is the middle element.
	if d.MedianResponseTime != 20 {
		t.Errorf("MedianResponseTime = %v", d.MedianResponseTime)
	}
	if got := d.AvgResponseTime; got < 41.6 || got > 41.7 {
		t.Errorf("AvgResponseTime = %v", got)
	}

	if len(d.SessionSummaries) != 2 {
		t.Fatalf("SessionSummaries = %v", d.SessionSummaries)
	}
	if d.SessionSummaries[0].ID != "aaaaaaaa" || d.SessionSummaries[0].Goal != "get the build green" {
		t.Errorf("summary = %+v", d.SessionSummaries[0])
	}
	if d.SessionSummaries[1].Goal != "" {
		t.Errorf("facet without goal should leave summary goal empty")
	}
}

func TestBuildSummaryCap(t *testing.T) {
	sms := make([]metrics.SessionMetrics, 10)
	for i := range sms {
		sms[i] = metrics.SessionMetrics{SessionID: "s", FirstPrompt: "p"}
	}
	d := Build(sms, nil, 3)
	if len(d.SessionSummaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(d.SessionSummaries))
	}
}

func TestBuildEmpty(t *testing.T) {
	d := Build(nil, nil, 100)
	if d.TotalSessions != 0 || d.DaysActive != 0 || d.MessagesPerDay != 0 {
		t.Errorf("empty build = %+v", d)
	}
	if d.DateRange.Start != "" || d.DateRange.End != "" {
		t.Errorf("DateRange = %+v", d.DateRange)
	}
}

func TestIsWarmupOnly(t *testing.T) {
	tests := []struct {
		name string
		f    *facets.Facet
		want bool
	}{
		{"no facet", nil, false},
		{"warmup only", &facets.Facet{GoalCategories: map[string]int{"warmup_minimal": 1}}, true},
		{"warmup plus real work", &facets.Facet{GoalCategories: map[string]int{"warmup_minimal": 1, "debugging": 2}}, false},
		{"warmup with zero others", &facets.Facet{GoalCategories: map[string]int{"warmup_minimal": 2, "debugging": 0}}, true},
		{"no categories", &facets.Facet{}, false},
		{"real work only", &facets.Facet{GoalCategories: map[string]int{"feature_dev": 3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWarmupOnly(tt.f); got != tt.want {
				t.Errorf("IsWarmupOnly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterWarmupOnly(t *testing.T) {
	sms := []metrics.SessionMetrics{
		{SessionID: "keep"},
		{SessionID: "warmup"},
		{SessionID: "nofacet"},
	}
	fm := map[string]*facets.Facet{
		"keep":   {GoalCategories: map[string]int{"debugging": 1}},
		"warmup": {GoalCategories: map[string]int{"warmup_minimal": 1}},
	}
	keptM, keptF := FilterWarmupOnly(sms, fm)
	if len(keptM) != 2 {
		t.Errorf("kept %d metrics, want 2", len(keptM))
	}
	for _, sm := range keptM {
		if sm.SessionID == "warmup" {
			t.Errorf("warmup session survived filter")
		}
	}
	if len(keptF) != 1 {
		t.Errorf("kept %d facets, want 1", len(keptF))
	}
	if _, ok := keptF["keep"]; !ok {
		t.Errorf("keep facet missing")
	}
}
