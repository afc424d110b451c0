// Package aggregate folds per-session metrics and facets into the
// dataset the report prompts and the HTML renderer consume.
package aggregate

import (
	"math"
	"sort"

	"github.com/santaclaude2025/insights/pkg/facets"
	"github.com/santaclaude2025/insights/pkg/metrics"
)

// DateRange is the first and last session date, YYYY-MM-DD.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SessionSummary is one line in the session digest fed to the report
// prompts.
type SessionSummary struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Summary string `json:"summary"`
	Goal    string `json:"goal,omitempty"`
}

// Data is the aggregated view across all analyzed sessions.
type Data struct {
	TotalSessions        int              `json:"total_sessions"`
	TotalSessionsScanned int              `json:"total_sessions_scanned"`
	SessionsWithFacets   int              `json:"sessions_with_facets"`
	DateRange            DateRange        `json:"date_range"`
	TotalMessages        int              `json:"total_messages"`
	TotalDurationHours   float64          `json:"total_duration_hours"`
	TotalInputTokens     int64            `json:"total_input_tokens"`
	TotalOutputTokens    int64            `json:"total_output_tokens"`
	ToolCounts           map[string]int   `json:"tool_counts"`
	Languages            map[string]int   `json:"languages"`
	GitCommits           int              `json:"git_commits"`
	GitPushes            int              `json:"git_pushes"`
	Projects             map[string]int   `json:"projects"`
	GoalCategories       map[string]int   `json:"goal_categories"`
	Outcomes             map[string]int   `json:"outcomes"`
	Satisfaction         map[string]int   `json:"satisfaction"`
	Helpfulness          map[string]int   `json:"helpfulness"`
	SessionTypes         map[string]int   `json:"session_types"`
	Friction             map[string]int   `json:"friction"`
	Success              map[string]int   `json:"success"`
	SessionSummaries     []SessionSummary `json:"session_summaries"`
	TotalInterruptions   int              `json:"total_interruptions"`
	TotalToolErrors      int              `json:"total_tool_errors"`
	ToolErrorCategories  map[string]int   `json:"tool_error_categories"`
	ResponseTimes        []float64        `json:"user_response_times"`
	MedianResponseTime   float64          `json:"median_response_time"`
	AvgResponseTime      float64          `json:"avg_response_time"`
	SessionsUsingTask    int              `json:"sessions_using_task_agent"`
	SessionsUsingMCP     int              `json:"sessions_using_mcp"`
	SessionsUsingSearch  int              `json:"sessions_using_web_search"`
	SessionsUsingFetch   int              `json:"sessions_using_web_fetch"`
	TotalLinesAdded      int              `json:"total_lines_added"`
	TotalLinesRemoved    int              `json:"total_lines_removed"`
	TotalFilesModified   int              `json:"total_files_modified"`
	DaysActive           int              `json:"days_active"`
	MessagesPerDay       float64          `json:"messages_per_day"`
	MessageHours         []int            `json:"message_hours"`
}

// Build folds the session metrics and their facets into one Data. The
// metrics slice is expected to already be filtered; facetsByID may
// cover any subset of it.
func Build(sessionMetrics []metrics.SessionMetrics, facetsByID map[string]*facets.Facet, maxSummaries int) *Data {
	d := &Data{
		TotalSessions:       len(sessionMetrics),
		SessionsWithFacets:  len(facetsByID),
		ToolCounts:          map[string]int{},
		Languages:           map[string]int{},
		Projects:            map[string]int{},
		GoalCategories:      map[string]int{},
		Outcomes:            map[string]int{},
		Satisfaction:        map[string]int{},
		Helpfulness:         map[string]int{},
		SessionTypes:        map[string]int{},
		Friction:            map[string]int{},
		Success:             map[string]int{},
		ToolErrorCategories: map[string]int{},
		SessionSummaries:    []SessionSummary{},
		ResponseTimes:       []float64{},
		MessageHours:        []int{},
	}

	var dates []string
	for i := range sessionMetrics {
		sm := &sessionMetrics[i]
		dates = append(dates, sm.StartDate())

		d.TotalMessages += sm.UserMessageCount
		d.TotalDurationHours += float64(sm.DurationMinutes) / 60
		d.TotalInputTokens += sm.InputTokens
		d.TotalOutputTokens += sm.OutputTokens
		d.GitCommits += sm.GitCommits
		d.GitPushes += sm.GitPushes
		d.TotalInterruptions += sm.UserInterruptions
		d.TotalToolErrors += sm.ToolErrors

		for k, v := range sm.ToolErrorCategories {
			d.ToolErrorCategories[k] += v
		}
		d.ResponseTimes = append(d.ResponseTimes, sm.ResponseTimes...)
		d.MessageHours = append(d.MessageHours, sm.MessageHours...)

		if sm.UsesTaskAgent {
			d.SessionsUsingTask++
		}
		if sm.UsesMCP {
			d.SessionsUsingMCP++
		}
		if sm.UsesWebSearch {
			d.SessionsUsingSearch++
		}
		if sm.UsesWebFetch {
			d.SessionsUsingFetch++
		}

		d.TotalLinesAdded += sm.LinesAdded
		d.TotalLinesRemoved += sm.LinesRemoved
		d.TotalFilesModified += sm.FilesModified

		for k, v := range sm.ToolCounts {
			d.ToolCounts[k] += v
		}
		for k, v := range sm.Languages {
			d.Languages[k] += v
		}
		if sm.Project != "" {
			d.Projects[sm.Project]++
		}

		f := facetsByID[sm.SessionID]
		if f != nil {
			mergeFacet(d, f)
		}

		if len(d.SessionSummaries) < maxSummaries {
			s := SessionSummary{
				ID:      shortID(sm.SessionID),
				Date:    sm.StartDate(),
				Summary: excerpt(sm.FirstPrompt, 200),
			}
			if f != nil {
				s.Goal = f.UnderlyingGoal
			}
			d.SessionSummaries = append(d.SessionSummaries, s)
		}
	}

	sort.Strings(dates)
	if len(dates) > 0 {
		d.DateRange.Start = dates[0]
		d.DateRange.End = dates[len(dates)-1]
	}

	if len(d.ResponseTimes) > 0 {
		sorted := append([]float64(nil), d.ResponseTimes...)
		sort.Float64s(sorted)
		d.MedianResponseTime = sorted[len(sorted)/2]
		var sum float64
		for _, t := range d.ResponseTimes {
			sum += t
		}
		d.AvgResponseTime = sum / float64(len(d.ResponseTimes))
	}

	uniqueDays := map[string]bool{}
	for _, date := range dates {
		if date != "" {
			uniqueDays[date] = true
		}
	}
	d.DaysActive = len(uniqueDays)
	if d.DaysActive > 0 {
		d.MessagesPerDay = math.Round(float64(d.TotalMessages)/float64(d.DaysActive)*10) / 10
	}
	return d
}

func mergeFacet(d *Data, f *facets.Facet) {
	for k, v := range f.GoalCategories {
		if v > 0 {
			d.GoalCategories[k] += v
		}
	}
	if f.Outcome != "" {
		d.Outcomes[f.Outcome]++
	}
	for k, v := range f.UserSatisfactionCounts {
		if v > 0 {
			d.Satisfaction[k] += v
		}
	}
	if f.ClaudeHelpfulness != "" {
		d.Helpfulness[f.ClaudeHelpfulness]++
	}
	if f.SessionType != "" {
		d.SessionTypes[f.SessionType]++
	}
	for k, v := range f.FrictionCounts {
		if v > 0 {
			d.Friction[k] += v
		}
	}
	if f.PrimarySuccess != "" && f.PrimarySuccess != "none" {
		d.Success[f.PrimarySuccess]++
	}
}

// IsWarmupOnly reports whether a facet's only active goal category is
// warmup_minimal. Sessions without a facet are never warmup-only.
func IsWarmupOnly(f *facets.Facet) bool {
	if f == nil {
		return false
	}
	active := ""
	n := 0
	for k, v := range f.GoalCategories {
		if v > 0 {
			n++
			active = k
		}
	}
	return n == 1 && active == "warmup_minimal"
}

// FilterWarmupOnly drops warmup-only sessions from both the metrics
// slice and the facet map.
func FilterWarmupOnly(sessionMetrics []metrics.SessionMetrics, facetsByID map[string]*facets.Facet) ([]metrics.SessionMetrics, map[string]*facets.Facet) {
	kept := make([]metrics.SessionMetrics, 0, len(sessionMetrics))
	for _, sm := range sessionMetrics {
		if !IsWarmupOnly(facetsByID[sm.SessionID]) {
			kept = append(kept, sm)
		}
	}
	keptFacets := make(map[string]*facets.Facet, len(facetsByID))
	for id, f := range facetsByID {
		if !IsWarmupOnly(f) {
			keptFacets[id] = f
		}
	}
	return kept, keptFacets
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func excerpt(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
