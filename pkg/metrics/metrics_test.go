package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/santaclaude2025/insights/pkg/transcript"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func userEvent(t *testing.T, ts, text string) transcript.Event {
	return transcript.Event{
		Type:      "user",
		Timestamp: ts,
		Message:   &transcript.Message{Content: raw(t, text)},
	}
}

func assistantEvent(t *testing.T, ts string, blocks []map[string]any, usage *transcript.Usage) transcript.Event {
	return transcript.Event{
		Type:      "assistant",
		Timestamp: ts,
		Message:   &transcript.Message{Content: raw(t, blocks), Usage: usage},
	}
}

func TestExtractBasicCounts(t *testing.T) {
	events := []transcript.Event{
		userEvent(t, "2026-03-01T09:00:00Z", "add a dark mode toggle"),
		assistantEvent(t, "2026-03-01T09:00:10Z", []map[string]any{
			{"type": "text", "text": "On it."},
			{"type": "tool_use", "name": "Edit", "input": map[string]any{
				"file_path":  "/app/theme.ts",
				"old_string": "a",
				"new_string": "a\nb\nc",
			}},
		}, &transcript.Usage{InputTokens: 100, OutputTokens: 40}),
		userEvent(t, "2026-03-01T09:05:00Z", "looks good, ship it"),
	}

	m := Extract(events, "sess-1", "proj")
	if m.UserMessageCount != 2 || m.AssistantMessageCount != 1 {
		t.Errorf("counts = %d user, %d assistant", m.UserMessageCount, m.AssistantMessageCount)
	}
	if m.InputTokens != 100 || m.OutputTokens != 40 {
		t.Errorf("tokens = %d/%d", m.InputTokens, m.OutputTokens)
	}
	if m.ToolCounts["Edit"] != 1 {
		t.Errorf("ToolCounts = %v", m.ToolCounts)
	}
	if m.Languages["TypeScript"] != 1 {
		t.Errorf("Languages = %v", m.Languages)
	}
	if m.LinesAdded != 2 || m.LinesRemoved != 0 {
		t.Errorf("lines = +%d -%d", m.LinesAdded, m.LinesRemoved)
	}
	if m.FilesModified != 1 {
		t.Errorf("FilesModified = %d", m.FilesModified)
	}
	if m.DurationMinutes != 5 {
		t.Errorf("DurationMinutes = %d", m.DurationMinutes)
	}
	if m.FirstPrompt != "add a dark mode toggle" {
		t.Errorf("FirstPrompt = %q", m.FirstPrompt)
	}
	if len(m.MessageHours) != 2 || m.MessageHours[0] != 9 {
		t.Errorf("MessageHours = %v", m.MessageHours)
	}
}

func TestLineDeltaRules(t *testing.T) {
	events := []transcript.Event{
		assistantEvent(t, "", []map[string]any{
			// Shrinking edit: 3 old lines -> 1 new line
			{"type": "tool_use", "name": "Edit", "input": map[string]any{
				"file_path": "/a.go", "old_string": "x\ny\nz", "new_string": "x",
			}},
			// Full-file write counts all lines as added
			{"type": "tool_use", "name": "Write", "input": map[string]any{
				"file_path": "/b.go", "content": "l1\nl2\nl3",
			}},
		}, nil),
	}
	m := Extract(events, "s", "p")
	if m.LinesAdded != 3 {
		t.Errorf("LinesAdded = %d, want 3", m.LinesAdded)
	}
	if m.LinesRemoved != 2 {
		t.Errorf("LinesRemoved = %d, want 2", m.LinesRemoved)
	}
	if m.FilesModified != 2 {
		t.Errorf("FilesModified = %d, want 2", m.FilesModified)
	}
}

func TestCapabilityFlagsAndGit(t *testing.T) {
	events := []transcript.Event{
		assistantEvent(t, "", []map[string]any{
			{"type": "tool_use", "name": "Task"},
			{"type": "tool_use", "name": "mcp__github__get_issue"},
			{"type": "tool_use", "name": "WebSearch"},
			{"type": "tool_use", "name": "WebFetch"},
			{"type": "tool_use", "name": "Bash", "input": map[string]any{
				"command": "git add -A && git commit -m x && git push",
			}},
		}, nil),
	}
	m := Extract(events, "s", "p")
	if !m.UsesTaskAgent || !m.UsesMCP || !m.UsesWebSearch || !m.UsesWebFetch {
		t.Errorf("flags = %+v", m)
	}
	if m.GitCommits != 1 || m.GitPushes != 1 {
		t.Errorf("git = %d commits, %d pushes", m.GitCommits, m.GitPushes)
	}
}

func TestResponseLatencyWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(offset time.Duration) string { return base.Add(offset).Format(time.RFC3339) }

	tests := []struct {
		name    string
		delay   time.Duration
		sampled bool
	}{
		{"five seconds in window", 5 * time.Second, true},
		{"one second too fast", 1 * time.Second, false},
		{"exactly lower bound", 2 * time.Second, false},
		{"4000 seconds idle", 4000 * time.Second, false},
		{"just under upper bound", 3599 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []transcript.Event{
				userEvent(t, mk(0), "start"),
				assistantEvent(t, mk(time.Second), []map[string]any{{"type": "text", "text": "done"}}, nil),
				userEvent(t, mk(time.Second+tt.delay), "next"),
			}
			m := Extract(events, "s", "p")
			if got := len(m.ResponseTimes) == 1; got != tt.sampled {
				t.Errorf("sampled = %v, want %v (times %v)", got, tt.sampled, m.ResponseTimes)
			}
		})
	}
}

func TestToolErrorClassification(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Command failed with exit code 1", CategoryCommandFailed},
		{"The user rejected the tool call", CategoryUserRejected},
		{"The user doesn't want to proceed", CategoryUserRejected},
		{"String to replace not found in file", CategoryEditFailed},
		{"No changes to make", CategoryEditFailed},
		{"File has been modified since read", CategoryFileChanged},
		{"File content exceeds maximum allowed size", CategoryFileTooLarge},
		{"Response too large to display", CategoryFileTooLarge},
		{"File not found", CategoryFileNotFound},
		{"path does not exist", CategoryFileNotFound},
		{"something else entirely", CategoryOther},
		// First category wins when several match
		{"rejected because exit code 2", CategoryCommandFailed},
	}
	for _, tt := range tests {
		if got := ClassifyToolError(tt.msg); got != tt.want {
			t.Errorf("ClassifyToolError(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestToolErrorCounting(t *testing.T) {
	events := []transcript.Event{
		{Type: "user", Message: &transcript.Message{Content: raw(t, []map[string]any{
			{"type": "tool_result", "is_error": true, "content": "Command failed with exit code 1"},
			{"type": "tool_result", "is_error": true, "content": []map[string]string{{"type": "text", "text": "structured error"}}},
			{"type": "tool_result", "is_error": false, "content": "fine"},
		})}},
	}
	m := Extract(events, "s", "p")
	if m.ToolErrors != 2 {
		t.Errorf("ToolErrors = %d, want 2", m.ToolErrors)
	}
	if m.ToolErrorCategories[CategoryCommandFailed] != 1 {
		t.Errorf("categories = %v", m.ToolErrorCategories)
	}
	// Array-form error content is counted but not categorized.
	if total := len(m.ToolErrorCategories); total != 1 {
		t.Errorf("got %d categories, want 1: %v", total, m.ToolErrorCategories)
	}
	if m.UserMessageCount != 0 {
		t.Errorf("tool-result-only message counted as user turn")
	}
}

func TestInterruptions(t *testing.T) {
	events := []transcript.Event{
		userEvent(t, "", "[Request interrupted by user]"),
		{Type: "user", Message: &transcript.Message{Content: raw(t, []map[string]any{
			{"type": "text", "text": "ok [Request interrupted by user for tool use]"},
		})}},
		userEvent(t, "", "normal message"),
	}
	m := Extract(events, "s", "p")
	if m.UserInterruptions != 2 {
		t.Errorf("UserInterruptions = %d, want 2", m.UserInterruptions)
	}
}

func TestTrivialFilter(t *testing.T) {
	oneTurn := SessionMetrics{UserMessageCount: 1, DurationMinutes: 30}
	if !oneTurn.Trivial(2, 1) {
		t.Error("single-user-turn session should be trivial regardless of duration")
	}
	twoTurns := SessionMetrics{UserMessageCount: 2, DurationMinutes: 1}
	if twoTurns.Trivial(2, 1) {
		t.Error("two turns over one minute should not be trivial")
	}
	zeroTurns := SessionMetrics{}
	if !zeroTurns.Trivial(2, 1) {
		t.Error("empty session must be trivial (duration treated as 0)")
	}
}

func TestDurationFloorsToOneMinute(t *testing.T) {
	events := []transcript.Event{
		userEvent(t, "2026-03-01T09:00:00Z", "hi"),
		userEvent(t, "2026-03-01T09:00:20Z", "hi again"),
	}
	m := Extract(events, "s", "p")
	if m.DurationMinutes != 1 {
		t.Errorf("DurationMinutes = %d, want 1", m.DurationMinutes)
	}
	if m.StartDate() != "2026-03-01" {
		t.Errorf("StartDate = %q", m.StartDate())
	}
}

func TestNoTimestampsNoDuration(t *testing.T) {
	events := []transcript.Event{
		userEvent(t, "", "hello"),
		userEvent(t, "", "world"),
	}
	m := Extract(events, "s", "p")
	if m.DurationMinutes != 0 {
		t.Errorf("DurationMinutes = %d, want 0", m.DurationMinutes)
	}
	if !m.StartTime.IsZero() {
		t.Errorf("StartTime = %v, want zero", m.StartTime)
	}
	if m.StartDate() != "" {
		t.Errorf("StartDate = %q, want empty", m.StartDate())
	}
}

func TestFirstPromptTruncated(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += fmt.Sprintf("word%02d ", i)
	}
	events := []transcript.Event{userEvent(t, "", long)}
	m := Extract(events, "s", "p")
	if len(m.FirstPrompt) != 200 {
		t.Errorf("FirstPrompt length = %d, want 200", len(m.FirstPrompt))
	}
}

func TestFirstPromptTruncationKeepsRunesWhole(t *testing.T) {
	// é straddles bytes 199-200, so the cut backs off to 199.
	long := strings.Repeat("x", 199) + "é" + strings.Repeat("y", 50)
	events := []transcript.Event{userEvent(t, "", long)}
	m := Extract(events, "s", "p")
	if !utf8.ValidString(m.FirstPrompt) {
		t.Fatalf("FirstPrompt is invalid UTF-8: %q", m.FirstPrompt)
	}
	if len(m.FirstPrompt) != 199 {
		t.Errorf("FirstPrompt length = %d, want 199", len(m.FirstPrompt))
	}
}
