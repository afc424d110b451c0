package facets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santaclaude2025/insights/pkg/logger"
)

// Cache stores one facet JSON file per session under a directory.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Load returns the cached facet for a session, or nil on a miss. A
// corrupt or unreadable file is treated as a miss.
func (c *Cache) Load(sessionID string) *Facet {
	data, err := os.ReadFile(c.path(sessionID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("facet cache read failed", "session_id", sessionID, "error", err)
		}
		return nil
	}
	var f Facet
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("facet cache corrupt, ignoring", "session_id", sessionID, "error", err)
		return nil
	}
	return &f
}

// Save writes a facet atomically: temp file in the same directory,
// then rename over the final path.
func (c *Cache) Save(f *Facet) error {
	if f.SessionID == "" {
		return errors.New("facet has no session id")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating facet cache dir: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding facet: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "facet-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp facet file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting facet file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing facet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing facet file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(f.SessionID)); err != nil {
		return fmt.Errorf("installing facet file: %w", err)
	}
	return nil
}

func (c *Cache) path(sessionID string) string {
	return filepath.Join(c.dir, sessionID+".json")
}
