package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestScan(t *testing.T) {
	projects := t.TempDir()
	proj := filepath.Join(projects, "-home-user-myproject")
	sub := filepath.Join(proj, "subagents")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	write := func(path string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(`{"type":"user"}`+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(proj, "123e4567-e89b-12d3-a456-426614174000.jsonl"))
	write(filepath.Join(sub, "agent-deadbeef01.jsonl"))
	write(filepath.Join(proj, "notes.jsonl"))       // bad id shape
	write(filepath.Join(proj, "123e4567.jsonl"))    // too short
	write(filepath.Join(proj, "readme.txt"))        // wrong extension

	sessions, err := Scan(projects)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2: %+v", len(sessions), sessions)
	}

	byID := map[string]SessionInfo{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}
	main, ok := byID["123e4567-e89b-12d3-a456-426614174000"]
	if !ok {
		t.Fatal("canonical session not found")
	}
	if main.IsSubagent {
		t.Error("main session flagged as subagent")
	}
	if main.Project != "-home-user-myproject" {
		t.Errorf("Project = %q", main.Project)
	}
	agent, ok := byID["agent-deadbeef01"]
	if !ok {
		t.Fatal("agent session not found")
	}
	if !agent.IsSubagent {
		t.Error("agent session under subagents/ not flagged")
	}
}

func TestScanMissingDir(t *testing.T) {
	sessions, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if sessions != nil {
		t.Errorf("got %v, want nil", sessions)
	}
}

func TestLoadEventsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	content := strings.Join([]string{
		`{"type":"user","timestamp":"2026-01-02T10:00:00Z","message":{"content":"hello"}}`,
		`this is not json`,
		``,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
		`{"type":"summary","summary":"ignored"}`,
		`{"type":"system","message":{"content":"sys"}}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, err := LoadEvents(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != "user" || events[1].Type != "assistant" || events[2].Type != "system" {
		t.Errorf("unexpected event types: %v %v %v", events[0].Type, events[1].Type, events[2].Type)
	}
	if s, ok := events[0].Message.TextContent(); !ok || s != "hello" {
		t.Errorf("TextContent = %q, %v", s, ok)
	}
	if ts, ok := events[0].Time(); !ok || ts.Hour() != 10 {
		t.Errorf("Time = %v, %v", ts, ok)
	}
}

func TestLoadEventsOpenFailure(t *testing.T) {
	if _, err := LoadEvents(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIsSelfGenerated(t *testing.T) {
	marker := "RESPOND WITH ONLY A VALID JSON " + "OBJECT matching this schema"
	tests := []struct {
		name   string
		events []Event
		want   bool
	}{
		{
			name: "string content with marker",
			events: []Event{
				{Type: "user", Message: &Message{Content: mustJSON(t, "Analyze this session. " + marker)}},
			},
			want: true,
		},
		{
			name: "block content with marker",
			events: []Event{
				{Type: "user", Message: &Message{Content: mustJSON(t, []map[string]string{{"type": "text", "text": "please record_facets for me"}})}},
			},
			want: true,
		},
		{
			name: "normal session",
			events: []Event{
				{Type: "user", Message: &Message{Content: mustJSON(t, "fix the failing test")}},
			},
			want: false,
		},
		{
			name: "marker beyond first five events",
			events: append(make([]Event, 0, 6), []Event{
				{Type: "user", Message: &Message{Content: mustJSON(t, "a")}},
				{Type: "user", Message: &Message{Content: mustJSON(t, "b")}},
				{Type: "user", Message: &Message{Content: mustJSON(t, "c")}},
				{Type: "user", Message: &Message{Content: mustJSON(t, "d")}},
				{Type: "user", Message: &Message{Content: mustJSON(t, "e")}},
				{Type: "user", Message: &Message{Content: mustJSON(t, marker)}},
			}...),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSelfGenerated(tt.events); got != tt.want {
				t.Errorf("IsSelfGenerated = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSerialize(t *testing.T) {
	events := []Event{
		{Type: "user", Message: &Message{Content: mustJSON(t, "please fix the build, it fails on linux")}},
		{Type: "assistant", Message: &Message{Content: mustJSON(t, []map[string]string{
			{"type": "text", "text": "Looking at the failure now."},
			{"type": "tool_use", "name": "Bash"},
		})}},
		{Type: "system", Message: &Message{Content: mustJSON(t, "ignored")}},
	}
	got := Serialize(events, 10, 7)
	want := strings.Join([]string{
		"[User]: please fix",
		"[Assistant]: Looking",
		"[Tool: Bash]",
	}, "\n")
	if got != want {
		t.Errorf("Serialize =\n%q\nwant\n%q", got, want)
	}
}

func TestSerializeUserBlocks(t *testing.T) {
	events := []Event{
		{Type: "user", Message: &Message{Content: mustJSON(t, []map[string]string{
			{"type": "text", "text": "first"},
			{"type": "tool_result", "text": ""},
			{"type": "text", "text": "second"},
		})}},
	}
	got := Serialize(events, 100, 100)
	if got != "[User]: first\n[User]: second" {
		t.Errorf("Serialize = %q", got)
	}
}

func TestSerializeTruncatesOnRuneBoundary(t *testing.T) {
	// "héllo wörld" is 13 bytes; a 9-byte limit lands inside ö.
	events := []Event{
		{Type: "user", Message: &Message{Content: mustJSON(t, "héllo wörld")}},
	}
	got := Serialize(events, 9, 9)
	if !utf8.ValidString(got) {
		t.Fatalf("Serialize produced invalid UTF-8: %q", got)
	}
	if got != "[User]: héllo w" {
		t.Errorf("Serialize = %q", got)
	}
}

func TestChunksRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 7, 50000} {
		for _, s := range []string{"", "a", "abcdef", strings.Repeat("x", 257)} {
			chunks := Chunks(s, size)
			if strings.Join(chunks, "") != s {
				t.Errorf("Chunks(%d-char, %d) does not round-trip", len(s), size)
			}
			for i, c := range chunks {
				if len(c) > size {
					t.Errorf("chunk %d has length %d > size %d", i, len(c), size)
				}
				if len(c) < size && i != len(chunks)-1 {
					t.Errorf("non-final chunk %d is short", i)
				}
			}
		}
	}
	if got := Chunks("", 10); got != nil {
		t.Errorf("Chunks empty = %v, want nil", got)
	}
}

func TestChunksKeepRunesWhole(t *testing.T) {
	s := strings.Repeat("日本語", 10)
	for _, size := range []int{4, 5, 7, 10} {
		chunks := Chunks(s, size)
		if strings.Join(chunks, "") != s {
			t.Errorf("Chunks(size %d) does not round-trip", size)
		}
		for i, c := range chunks {
			if !utf8.ValidString(c) {
				t.Errorf("Chunks(size %d) chunk %d is invalid UTF-8: %q", size, i, c)
			}
			if len(c) > size {
				t.Errorf("Chunks(size %d) chunk %d has %d bytes", size, i, len(c))
			}
		}
	}
}
