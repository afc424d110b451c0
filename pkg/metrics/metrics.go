// Package metrics derives structured per-session metrics from a parsed
// event sequence. Extraction is a pure function: no I/O, no randomness.
package metrics

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/santaclaude2025/insights/pkg/transcript"
)

const (
	// Response latency is sampled only when a user turn follows an
	// assistant turn within this window (both bounds exclusive). Values
	// outside are treated as idle time and discarded.
	latencyMinSeconds = 2
	latencyMaxSeconds = 3600

	// firstPromptLen bounds the leading excerpt of the first user message.
	firstPromptLen = 200

	interruptionMarker = "[Request interrupted by user"
)

// SessionMetrics is the derived, immutable record for one session.
type SessionMetrics struct {
	SessionID             string         `json:"session_id"`
	Project               string         `json:"project_path"`
	StartTime             time.Time      `json:"start_time"`
	DurationMinutes       int            `json:"duration_minutes"`
	UserMessageCount      int            `json:"user_message_count"`
	AssistantMessageCount int            `json:"assistant_message_count"`
	ToolCounts            map[string]int `json:"tool_counts"`
	Languages             map[string]int `json:"languages"`
	GitCommits            int            `json:"git_commits"`
	GitPushes             int            `json:"git_pushes"`
	InputTokens           int64          `json:"input_tokens"`
	OutputTokens          int64          `json:"output_tokens"`
	FirstPrompt           string         `json:"first_prompt"`
	UserInterruptions     int            `json:"user_interruptions"`
	ResponseTimes         []float64      `json:"user_response_times"`
	ToolErrors            int            `json:"tool_errors"`
	ToolErrorCategories   map[string]int `json:"tool_error_categories"`
	UsesTaskAgent         bool           `json:"uses_task_agent"`
	UsesMCP               bool           `json:"uses_mcp"`
	UsesWebSearch         bool           `json:"uses_web_search"`
	UsesWebFetch          bool           `json:"uses_web_fetch"`
	LinesAdded            int            `json:"lines_added"`
	LinesRemoved          int            `json:"lines_removed"`
	FilesModified         int            `json:"files_modified"`
	MessageHours          []int          `json:"message_hours"`
}

// Trivial reports whether the session falls below the minimum user-turn
// count or duration and should be excluded from aggregation. A session
// with no timestamped user turns has duration 0 and is always trivial.
func (m *SessionMetrics) Trivial(minUserMessages, minDurationMinutes int) bool {
	return m.UserMessageCount < minUserMessages || m.DurationMinutes < minDurationMinutes
}

// StartDate returns the session's start date as YYYY-MM-DD, or "" when
// the session had no timestamped user turn.
func (m *SessionMetrics) StartDate() string {
	if m.StartTime.IsZero() {
		return ""
	}
	return m.StartTime.Format("2006-01-02")
}

// Extract walks the event sequence once and accumulates all metric
// fields.
func Extract(events []transcript.Event, sessionID, project string) SessionMetrics {
	m := SessionMetrics{
		SessionID:           sessionID,
		Project:             project,
		ToolCounts:          map[string]int{},
		Languages:           map[string]int{},
		ToolErrorCategories: map[string]int{},
	}

	filesModified := map[string]bool{}
	var lastAssistantAt time.Time
	var startTime, endTime time.Time

	for i := range events {
		ev := &events[i]
		if ev.Message == nil {
			continue
		}

		switch ev.Type {
		case "assistant":
			m.AssistantMessageCount++
			if t, ok := ev.Time(); ok {
				lastAssistantAt = t
			}
			if u := ev.Message.Usage; u != nil {
				m.InputTokens += u.InputTokens
				m.OutputTokens += u.OutputTokens
			}
			for _, b := range ev.Message.Blocks() {
				if b.Type != "tool_use" {
					continue
				}
				recordToolUse(&m, &b, filesModified)
			}

		case "user":
			text, hasText := userText(ev.Message, &m)
			if hasText {
				m.UserMessageCount++
				if m.FirstPrompt == "" {
					m.FirstPrompt = truncate(text, firstPromptLen)
				}
				if t, ok := ev.Time(); ok {
					m.MessageHours = append(m.MessageHours, t.Hour())
					if startTime.IsZero() {
						startTime = t
					}
					endTime = t
					if !lastAssistantAt.IsZero() {
						delta := t.Sub(lastAssistantAt).Seconds()
						if delta > latencyMinSeconds && delta < latencyMaxSeconds {
							m.ResponseTimes = append(m.ResponseTimes, delta)
						}
					}
				}
			}
			if hasInterruption(ev.Message) {
				m.UserInterruptions++
			}
		}
	}

	if !startTime.IsZero() && !endTime.IsZero() {
		minutes := int(endTime.Sub(startTime).Minutes())
		if minutes < 1 {
			minutes = 1
		}
		m.DurationMinutes = minutes
		m.StartTime = startTime
	}
	m.FilesModified = len(filesModified)
	return m
}

// recordToolUse tallies one tool invocation: counts, capability flags,
// language and file-delta accounting, git activity.
func recordToolUse(m *SessionMetrics, b *transcript.Block, filesModified map[string]bool) {
	name := b.Name
	m.ToolCounts[name]++
	switch {
	case name == "Task":
		m.UsesTaskAgent = true
	case strings.HasPrefix(name, "mcp__"):
		m.UsesMCP = true
	case name == "WebSearch":
		m.UsesWebSearch = true
	case name == "WebFetch":
		m.UsesWebFetch = true
	}

	in := b.ToolInput()
	if in.FilePath != "" {
		ext := strings.ToLower(filepath.Ext(in.FilePath))
		if lang, ok := langByExtension[ext]; ok {
			m.Languages[lang]++
		}
		if name == "Edit" || name == "Write" {
			filesModified[in.FilePath] = true
		}
	}
	if name == "Write" && in.Content != "" {
		m.LinesAdded += strings.Count(in.Content, "\n") + 1
	}
	if name == "Edit" {
		oldLines := lineCount(in.OldString)
		newLines := lineCount(in.NewString)
		if newLines > oldLines {
			m.LinesAdded += newLines - oldLines
		}
		if oldLines > newLines {
			m.LinesRemoved += oldLines - newLines
		}
	}
	if in.Command != "" {
		if strings.Contains(in.Command, "git commit") {
			m.GitCommits++
		}
		if strings.Contains(in.Command, "git push") {
			m.GitPushes++
		}
	}
}

// userText scans user message content for the first real text item,
// counting tool-result errors encountered before it. The scan stops at
// the first non-empty text block.
func userText(msg *transcript.Message, m *SessionMetrics) (string, bool) {
	if s, ok := msg.TextContent(); ok {
		if strings.TrimSpace(s) != "" {
			return s, true
		}
		return "", false
	}
	for _, b := range msg.Blocks() {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			return b.Text, true
		}
		if b.Type == "tool_result" && b.IsError {
			m.ToolErrors++
			if errText, ok := b.ResultText(); ok {
				m.ToolErrorCategories[ClassifyToolError(errText)]++
			}
		}
	}
	return "", false
}

func hasInterruption(msg *transcript.Message) bool {
	if s, ok := msg.TextContent(); ok {
		return strings.Contains(s, interruptionMarker)
	}
	for _, b := range msg.Blocks() {
		if b.Type == "text" && strings.Contains(b.Text, interruptionMarker) {
			return true
		}
	}
	return false
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
