package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/santaclaude2025/insights/pkg/logger"
)

// SessionInfo holds metadata about a discovered session transcript.
type SessionInfo struct {
	SessionID  string
	Path       string
	Project    string
	ModTime    time.Time
	SizeBytes  int64
	IsSubagent bool
}

var agentIDRe = regexp.MustCompile(`(?i)^agent-[0-9a-f]+$`)

// validSessionID accepts the canonical UUID form and the agent-prefixed
// form used by subagent sidechains. Anything else is skipped silently.
func validSessionID(id string) bool {
	if len(id) == 36 {
		if _, err := uuid.Parse(id); err == nil {
			return true
		}
	}
	return agentIDRe.MatchString(id)
}

// Scan finds all session transcript files under the projects directory,
// including subagent sessions, sorted by modification time (newest
// first). A missing projects directory yields an empty result; a project
// directory that cannot be read is logged and skipped.
func Scan(projectsDir string) ([]SessionInfo, error) {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDir := filepath.Join(projectsDir, entry.Name())
		err := filepath.WalkDir(projectDir, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				logger.Warn("failed to access path during scan", "path", path, "error", walkErr)
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
				return nil
			}

			sessionID := strings.TrimSuffix(d.Name(), ".jsonl")
			if !validSessionID(sessionID) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}

			sessions = append(sessions, SessionInfo{
				SessionID:  sessionID,
				Path:       path,
				Project:    entry.Name(),
				ModTime:    info.ModTime(),
				SizeBytes:  info.Size(),
				IsSubagent: strings.Contains(path, string(filepath.Separator)+"subagents"+string(filepath.Separator)),
			})
			return nil
		})
		if err != nil {
			logger.Warn("failed to walk project directory", "project", entry.Name(), "error", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
	return sessions, nil
}
