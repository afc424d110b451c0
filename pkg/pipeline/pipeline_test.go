package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/santaclaude2025/insights/pkg/config"
	"github.com/santaclaude2025/insights/pkg/transcript"
)

func writeCredentials(t *testing.T, dir string) {
	t.Helper()
	creds := map[string]any{
		"claudeAiOauth": map[string]any{
			"accessToken":      "tok-live",
			"refreshToken":     "tok-refresh",
			"expiresAt":        time.Now().Add(time.Hour).UnixMilli(),
			"subscriptionType": "max",
		},
	}
	data, _ := json.Marshal(creds)
	if err := os.WriteFile(filepath.Join(dir, ".credentials.json"), data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func writeSession(t *testing.T, projectsDir, project, sessionID string, lines []string) string {
	t.Helper()
	dir := filepath.Join(projectsDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func eventLine(t *testing.T, typ, ts, text string) string {
	t.Helper()
	ev := map[string]any{
		"type":      typ,
		"timestamp": ts,
		"message":   map[string]any{"role": typ, "content": text},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func testSetup(t *testing.T) config.Config {
	t.Helper()
	claudeDir := t.TempDir()
	writeCredentials(t, claudeDir)
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.ClaudeDir = claudeDir
	cfg.ProjectsDir = filepath.Join(claudeDir, "projects")
	cfg.CredentialsFile = filepath.Join(claudeDir, ".credentials.json")
	cfg.FacetsDir = filepath.Join(claudeDir, "usage-data", "facets")
	cfg.OutputDir = filepath.Join(claudeDir, "usage-data", "enhanced")
	return cfg
}

func TestDryRun(t *testing.T) {
	cfg := testSetup(t)
	writeSession(t, cfg.ProjectsDir, "-home-user-app", "11111111-2222-3333-4444-555555555555", []string{
		eventLine(t, "user", "2026-03-01T09:00:00Z", "add retry logic to the uploader"),
		eventLine(t, "assistant", "2026-03-01T09:00:30Z", "Working on it."),
		eventLine(t, "user", "2026-03-01T09:04:00Z", "also bump the timeout"),
	})
	// Trivial one-message session is scanned but not analyzed.
	writeSession(t, cfg.ProjectsDir, "-home-user-app", "99999999-2222-3333-4444-555555555555", []string{
		eventLine(t, "user", "2026-03-01T10:00:00Z", "hi"),
	})

	var buf bytes.Buffer
	p := New(cfg, &buf)
	if err := p.Run(context.Background(), Options{DryRun: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Token valid, subscription: max",
		"Found 2 session files (2 main, 0 subagent) across 1 projects",
		"DRY RUN",
		"Non-trivial sessions: 1",
		"Uncached (need API):  1",
		"Est. cost:            $",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestDryRunBadAfterDateIsFatal(t *testing.T) {
	cfg := testSetup(t)
	var buf bytes.Buffer
	p := New(cfg, &buf)
	err := p.Run(context.Background(), Options{DryRun: true, After: "03/01/2026"})
	if err == nil || !strings.Contains(err.Error(), "invalid date format") {
		t.Fatalf("err = %v", err)
	}
}

func TestFilterSessionsProjectGlob(t *testing.T) {
	cfg := testSetup(t)
	var buf bytes.Buffer
	p := New(cfg, &buf)

	sessions := []transcript.SessionInfo{
		{SessionID: "a", Project: "-home-user-claude-tools"},
		{SessionID: "b", Project: "-home-user-webapp"},
	}
	got, err := p.filterSessions(sessions, Options{ProjectGlob: "*claude*"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SessionID != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestFilterSessionsAfter(t *testing.T) {
	cfg := testSetup(t)
	var buf bytes.Buffer
	p := New(cfg, &buf)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sessions := []transcript.SessionInfo{
		{SessionID: "old", ModTime: old},
		{SessionID: "new", ModTime: recent},
	}
	got, err := p.filterSessions(sessions, Options{After: "2026-02-01"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SessionID != "new" {
		t.Errorf("got %+v", got)
	}
}

func TestEstimateCost(t *testing.T) {
	cost, tokIn, tokOut := estimateCost(10, 0)
	if tokIn != 10*4000+8*8000 {
		t.Errorf("tokIn = %d", tokIn)
	}
	if tokOut != 10*1000+8*4000 {
		t.Errorf("tokOut = %d", tokOut)
	}
	// 104000 in at $3/M + 42000 out at $15/M = 0.312 + 0.63
	if got := cost.StringFixed(2); got != "0.94" {
		t.Errorf("cost = %s", got)
	}
}

func TestRawDumpShape(t *testing.T) {
	cfg := testSetup(t)
	p := New(cfg, &bytes.Buffer{})
	raw, err := p.rawDump(nil, map[string]json.RawMessage{"fun_ending": json.RawMessage(`{"headline":"x"}`)})
	if err != nil {
		t.Fatal(err)
	}
	var dump map[string]json.RawMessage
	if err := json.Unmarshal(raw, &dump); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"aggregated", "insights", "config"} {
		if _, ok := dump[key]; !ok {
			t.Errorf("dump missing %q\n%s", key, raw)
		}
	}
	var conf map[string]any
	if err := json.Unmarshal(dump["config"], &conf); err != nil {
		t.Fatal(err)
	}
	if conf["model"] != config.DefaultModel {
		t.Errorf("config.model = %v", conf["model"])
	}
}
