package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteReport writes the HTML report and the raw JSON dump next to
// each other under dir, timestamped so successive runs never clobber
// one another. Both files are owner-readable only.
func WriteReport(dir, html string, rawJSON []byte, now time.Time) (htmlPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output dir: %w", err)
	}
	stamp := now.Format("20060102-150405")
	htmlPath = filepath.Join(dir, fmt.Sprintf("claude-insights-%s.html", stamp))
	jsonPath = filepath.Join(dir, fmt.Sprintf("claude-insights-%s.json", stamp))

	if err := os.WriteFile(htmlPath, []byte(html), 0o600); err != nil {
		return "", "", fmt.Errorf("writing HTML report: %w", err)
	}
	if err := os.WriteFile(jsonPath, rawJSON, 0o600); err != nil {
		return "", "", fmt.Errorf("writing raw data: %w", err)
	}
	return htmlPath, jsonPath, nil
}
