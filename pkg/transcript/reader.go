package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxLineBytes bounds a single transcript line. Tool results embedding
// whole files can run to megabytes.
const maxLineBytes = 10 * 1024 * 1024

// LoadEvents parses a JSONL session file into an ordered event sequence.
// Lines that fail to parse are skipped; only user, assistant and system
// records are kept.
func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "user", "assistant", "system":
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading transcript: %w", err)
	}
	return events, nil
}

// Markers that identify sessions generated by this pipeline's own
// extraction prompts. Analyzing those would feed the tool's output back
// into itself.
var selfMarkers = []string{
	"RESPOND WITH ONLY A VALID JSON OBJECT",
	"record_facets",
}

// IsSelfGenerated reports whether the session's early content indicates
// it was produced by an insights extraction run.
func IsSelfGenerated(events []Event) bool {
	n := len(events)
	if n > 5 {
		n = 5
	}
	for _, ev := range events[:n] {
		if ev.Type != "user" || ev.Message == nil {
			continue
		}
		if s, ok := ev.Message.TextContent(); ok {
			if containsSelfMarker(s) {
				return true
			}
			continue
		}
		for _, b := range ev.Message.Blocks() {
			if b.Type == "text" && containsSelfMarker(b.Text) {
				return true
			}
		}
	}
	return false
}

func containsSelfMarker(s string) bool {
	for _, marker := range selfMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
