// Package config holds the immutable run configuration for the insights
// pipeline. A Config is built once at startup from defaults, environment
// overrides and CLI flags, then passed by value into each component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultModel is the model used for all API calls unless overridden.
const DefaultModel = "claude-opus-4-6"

// Config is the full set of knobs for one run. Fields are never mutated
// after construction.
type Config struct {
	Model string

	// Token budgets per call type
	SummarizeMaxTokens     int
	FacetMaxTokens         int
	ReportSectionMaxTokens int

	// Data limits
	MaxSessionsToProcess int
	MaxFacetsForReport   int
	MaxFrictionDetails   int
	MaxSessionSummaries  int
	MaxTopItems          int

	// Transcript limits
	UserMsgTruncate      int
	AssistantMsgTruncate int
	LongSessionThreshold int
	ChunkSize            int

	// Trivial-session filter
	MinUserMessages    int
	MinDurationMinutes int

	// Parallelism and pacing
	FacetBatchSize    int
	FacetBatchDelay   time.Duration
	ReportParallelism int

	// Paths
	ClaudeDir       string
	ProjectsDir     string
	CredentialsFile string
	FacetsDir       string
	OutputDir       string
}

// Default returns the standard configuration, resolving paths from
// CLAUDE_CONFIG_DIR (default ~/.claude) and INSIGHTS_OUTPUT_DIR.
func Default() (Config, error) {
	claudeDir := os.Getenv("CLAUDE_CONFIG_DIR")
	if claudeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		claudeDir = filepath.Join(home, ".claude")
	}

	usageDataDir := filepath.Join(claudeDir, "usage-data")
	outputDir := os.Getenv("INSIGHTS_OUTPUT_DIR")
	if outputDir == "" {
		outputDir = filepath.Join(usageDataDir, "enhanced")
	}

	return Config{
		Model: DefaultModel,

		SummarizeMaxTokens:     2048,
		FacetMaxTokens:         8192,
		ReportSectionMaxTokens: 16384,

		MaxSessionsToProcess: 9999,
		MaxFacetsForReport:   200,
		MaxFrictionDetails:   50,
		MaxSessionSummaries:  100,
		MaxTopItems:          15,

		UserMsgTruncate:      2000,
		AssistantMsgTruncate: 1000,
		LongSessionThreshold: 60000,
		ChunkSize:            50000,

		MinUserMessages:    2,
		MinDurationMinutes: 1,

		FacetBatchSize:    5,
		FacetBatchDelay:   time.Second,
		ReportParallelism: 7,

		ClaudeDir:       claudeDir,
		ProjectsDir:     filepath.Join(claudeDir, "projects"),
		CredentialsFile: filepath.Join(claudeDir, ".credentials.json"),
		FacetsDir:       filepath.Join(usageDataDir, "facets"),
		OutputDir:       outputDir,
	}, nil
}

// WithModel returns a copy of the config with the model replaced.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}
