package transcript

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Serialize renders events into a flat text transcript with per-role
// prefixes. User and assistant lines are independently truncated to the
// given character limits; truncation is a plain prefix cut with no word
// boundary handling.
func Serialize(events []Event, userLimit, assistantLimit int) string {
	var lines []string
	for i := range events {
		ev := &events[i]
		if ev.Message == nil {
			continue
		}
		switch ev.Type {
		case "user":
			if s, ok := ev.Message.TextContent(); ok {
				lines = append(lines, "[User]: "+truncate(s, userLimit))
				continue
			}
			for _, b := range ev.Message.Blocks() {
				if b.Type == "text" {
					lines = append(lines, "[User]: "+truncate(b.Text, userLimit))
				}
			}
		case "assistant":
			for _, b := range ev.Message.Blocks() {
				switch b.Type {
				case "text":
					lines = append(lines, "[Assistant]: "+truncate(b.Text, assistantLimit))
				case "tool_use":
					name := b.Name
					if name == "" {
						name = "?"
					}
					lines = append(lines, fmt.Sprintf("[Tool: %s]", name))
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// Chunks splits s into contiguous chunks of at most size bytes, each cut
// on a rune boundary. Concatenating the result reproduces s exactly.
func Chunks(s string, size int) []string {
	if size < 1 {
		size = 1
	}
	var chunks []string
	for start := 0; start < len(s); {
		end := start + size
		if end >= len(s) {
			chunks = append(chunks, s[start:])
			break
		}
		for end > start && !utf8.RuneStart(s[end]) {
			end--
		}
		if end == start {
			// invalid UTF-8 run longer than size
			end = start + size
		}
		chunks = append(chunks, s[start:end])
		start = end
	}
	return chunks
}
