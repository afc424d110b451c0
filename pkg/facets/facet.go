// Package facets extracts structured session facets with Claude and
// caches them on disk, one file per session.
package facets

import (
	"fmt"
)

// Facet is the structured judgment extracted from one session
// transcript.
type Facet struct {
	SessionID              string         `json:"session_id"`
	UnderlyingGoal         string         `json:"underlying_goal"`
	GoalCategories         map[string]int `json:"goal_categories"`
	Outcome                string         `json:"outcome"`
	UserSatisfactionCounts map[string]int `json:"user_satisfaction_counts"`
	ClaudeHelpfulness      string         `json:"claude_helpfulness"`
	SessionType            string         `json:"session_type"`
	FrictionCounts         map[string]int `json:"friction_counts"`
	FrictionDetail         string         `json:"friction_detail"`
	PrimarySuccess         string         `json:"primary_success"`
	BriefSummary           string         `json:"brief_summary"`
}

var (
	validOutcomes = map[string]bool{
		"fully_achieved":          true,
		"mostly_achieved":         true,
		"partially_achieved":      true,
		"not_achieved":            true,
		"unclear_from_transcript": true,
	}
	validHelpfulness = map[string]bool{
		"unhelpful":          true,
		"slightly_helpful":   true,
		"moderately_helpful": true,
		"very_helpful":       true,
		"essential":          true,
	}
	validSessionTypes = map[string]bool{
		"single_task":          true,
		"multi_task":           true,
		"iterative_refinement": true,
		"exploration":          true,
		"quick_question":       true,
	}
	validPrimarySuccess = map[string]bool{
		"none":                 true,
		"fast_accurate_search": true,
		"correct_code_edits":   true,
		"good_explanations":    true,
		"proactive_help":       true,
		"multi_file_changes":   true,
		"good_debugging":       true,
	}
)

// Validate checks enum fields against their closed sets and rejects
// negative counts. Empty enum fields are allowed; the aggregator
// treats them as absent.
func (f *Facet) Validate() error {
	if f.Outcome != "" && !validOutcomes[f.Outcome] {
		return fmt.Errorf("invalid outcome %q", f.Outcome)
	}
	if f.ClaudeHelpfulness != "" && !validHelpfulness[f.ClaudeHelpfulness] {
		return fmt.Errorf("invalid claude_helpfulness %q", f.ClaudeHelpfulness)
	}
	if f.SessionType != "" && !validSessionTypes[f.SessionType] {
		return fmt.Errorf("invalid session_type %q", f.SessionType)
	}
	if f.PrimarySuccess != "" && !validPrimarySuccess[f.PrimarySuccess] {
		return fmt.Errorf("invalid primary_success %q", f.PrimarySuccess)
	}
	for name, m := range map[string]map[string]int{
		"goal_categories":          f.GoalCategories,
		"user_satisfaction_counts": f.UserSatisfactionCounts,
		"friction_counts":          f.FrictionCounts,
	} {
		for k, v := range m {
			if v < 0 {
				return fmt.Errorf("negative count %d for %s[%q]", v, name, k)
			}
		}
	}
	return nil
}
