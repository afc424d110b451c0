// Package pipeline drives the full insights run: discovery, metric
// extraction, facet extraction, aggregation, report synthesis and
// rendering.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"

	"github.com/santaclaude2025/insights/pkg/aggregate"
	"github.com/santaclaude2025/insights/pkg/anthropic"
	"github.com/santaclaude2025/insights/pkg/auth"
	"github.com/santaclaude2025/insights/pkg/config"
	"github.com/santaclaude2025/insights/pkg/facets"
	"github.com/santaclaude2025/insights/pkg/logger"
	"github.com/santaclaude2025/insights/pkg/metrics"
	"github.com/santaclaude2025/insights/pkg/render"
	"github.com/santaclaude2025/insights/pkg/report"
	"github.com/santaclaude2025/insights/pkg/transcript"
)

var tracer = otel.Tracer("insights/pipeline")

// Options are the per-run flags.
type Options struct {
	DryRun      bool
	ProjectGlob string
	After       string
}

// Pipeline owns one end-to-end run.
type Pipeline struct {
	cfg config.Config
	out io.Writer
	now func() time.Time
}

func New(cfg config.Config, out io.Writer) *Pipeline {
	return &Pipeline{cfg: cfg, out: out, now: time.Now}
}

const rule = "============================================================"

// Run executes the pipeline. Per-session problems are logged and
// skipped; only setup failures (credentials, bad flags, unwritable
// output) abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) error {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	fmt.Fprintln(p.out, rule)
	fmt.Fprintln(p.out, "Claude Code Enhanced Insights")
	fmt.Fprintln(p.out, rule)

	fmt.Fprintln(p.out, "\n[0/5] Loading OAuth credentials...")
	creds, err := auth.NewManager(p.cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if _, err := creds.Token(ctx); err != nil {
		return fmt.Errorf("validating token: %w", err)
	}
	fmt.Fprintf(p.out, "  Token valid, subscription: %s\n", orUnknown(creds.SubscriptionType()))
	// One batch of facet extractions per second, shared across workers.
	client := anthropic.NewClient(creds,
		anthropic.WithRateLimit(float64(p.cfg.FacetBatchSize), p.cfg.FacetBatchSize))

	fmt.Fprintln(p.out, "\n[1/5] Discovering sessions...")
	sessions, err := transcript.Scan(p.cfg.ProjectsDir)
	if err != nil {
		return fmt.Errorf("scanning projects: %w", err)
	}
	sessions, err = p.filterSessions(sessions, opts)
	if err != nil {
		return err
	}

	subagents := 0
	projects := map[string]bool{}
	for _, s := range sessions {
		if s.IsSubagent {
			subagents++
		}
		projects[s.Project] = true
	}
	fmt.Fprintf(p.out, "  Found %d session files (%d main, %d subagent) across %d projects\n",
		len(sessions), len(sessions)-subagents, subagents, len(projects))

	fmt.Fprintln(p.out, "\n[2/5] Loading sessions and extracting metrics...")
	cache := facets.NewCache(p.cfg.FacetsDir)
	engine := facets.NewEngine(client, cache, p.cfg)

	var allMetrics []metrics.SessionMetrics
	facetsByID := map[string]*facets.Facet{}
	var needExtraction []facets.Item

	for i, sess := range sessions {
		if i > 0 && i%20 == 0 {
			fmt.Fprintf(p.out, "  Processed %d/%d sessions...\n", i, len(sessions))
		}
		events, err := transcript.LoadEvents(sess.Path)
		if err != nil {
			logger.Warn("failed to load session", "path", sess.Path, "error", err)
			continue
		}
		if len(events) == 0 || transcript.IsSelfGenerated(events) {
			continue
		}

		m := metrics.Extract(events, sess.SessionID, sess.Project)
		if m.Trivial(p.cfg.MinUserMessages, p.cfg.MinDurationMinutes) {
			continue
		}
		allMetrics = append(allMetrics, m)

		if cached := cache.Load(sess.SessionID); cached != nil {
			facetsByID[sess.SessionID] = cached
		} else {
			needExtraction = append(needExtraction, facets.Item{Events: events, Metrics: &m})
		}
	}
	fmt.Fprintf(p.out, "  %d non-trivial sessions\n", len(allMetrics))
	fmt.Fprintf(p.out, "  %d cached facets, %d need extraction\n", len(facetsByID), len(needExtraction))

	if len(needExtraction) > p.cfg.MaxSessionsToProcess {
		needExtraction = needExtraction[:p.cfg.MaxSessionsToProcess]
	}

	if opts.DryRun {
		p.printDryRun(len(sessions), len(allMetrics), len(facetsByID), len(needExtraction), opts)
		return nil
	}

	if len(needExtraction) > 0 {
		fmt.Fprintf(p.out, "\n[3/5] Extracting facets for %d sessions (model: %s, batch_size: %d)...\n",
			len(needExtraction), p.cfg.Model, p.cfg.FacetBatchSize)
		extracted := engine.ExtractAll(ctx, needExtraction, func(done, total int, sessionID string, err error) {
			status := "ok"
			if err != nil {
				status = "skip"
			}
			fmt.Fprintf(p.out, "  [%d/%d] %.8s %s\n", done, total, sessionID, status)
		})
		for id, f := range extracted {
			facetsByID[id] = f
		}
	} else {
		fmt.Fprintln(p.out, "\n[3/5] All facets cached, skipping extraction.")
	}

	filteredMetrics, filteredFacets := aggregate.FilterWarmupOnly(allMetrics, facetsByID)
	fmt.Fprintf(p.out, "\n  After filtering warmups: %d sessions, %d facets\n",
		len(filteredMetrics), len(filteredFacets))

	data := aggregate.Build(filteredMetrics, filteredFacets, p.cfg.MaxSessionSummaries)
	data.TotalSessionsScanned = len(sessions)

	gen := report.NewGenerator(client, p.cfg)
	payload, err := gen.BuildPayload(data, filteredFacets)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "\n[4/5] Generating report sections (%d calls)...\n", len(report.SectionNames()))
	sections := gen.Generate(ctx, payload, func(name string, err error) {
		if err != nil {
			fmt.Fprintf(p.out, "  [%s] failed\n", name)
		} else {
			fmt.Fprintf(p.out, "  [%s] done\n", name)
		}
	})

	fmt.Fprintln(p.out, "\n[5/5] Generating HTML report...")
	now := p.now()
	html, err := render.Report(data, sections, p.cfg.Model, p.cfg.MaxTopItems, now)
	if err != nil {
		return err
	}
	raw, err := p.rawDump(data, sections)
	if err != nil {
		return err
	}
	htmlPath, jsonPath, err := render.WriteReport(p.cfg.OutputDir, html, raw, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "  Report saved to: %s\n", htmlPath)
	fmt.Fprintf(p.out, "  Raw data saved to: %s\n", jsonPath)

	fmt.Fprintln(p.out, "\n"+rule)
	fmt.Fprintln(p.out, "Done!")
	fmt.Fprintf(p.out, "Sessions scanned: %d\n", len(sessions))
	fmt.Fprintf(p.out, "Sessions analyzed: %d\n", len(filteredMetrics))
	fmt.Fprintf(p.out, "Facets extracted: %d\n", len(filteredFacets))
	fmt.Fprintf(p.out, "API calls made: %s\n", humanize.Comma(engine.APICalls()))
	fmt.Fprintf(p.out, "Report: file://%s\n", htmlPath)
	fmt.Fprintln(p.out, rule)
	return nil
}

// filterSessions applies the project glob and --after cutoff. A
// malformed date is a setup error and aborts the run.
func (p *Pipeline) filterSessions(sessions []transcript.SessionInfo, opts Options) ([]transcript.SessionInfo, error) {
	if opts.ProjectGlob != "" {
		kept := sessions[:0]
		before := len(sessions)
		for _, s := range sessions {
			if ok, _ := path.Match(opts.ProjectGlob, s.Project); ok {
				kept = append(kept, s)
			}
		}
		sessions = kept
		fmt.Fprintf(p.out, "  Project filter %q: %d -> %d\n", opts.ProjectGlob, before, len(sessions))
	}
	if opts.After != "" {
		cutoff, err := time.Parse("2006-01-02", opts.After)
		if err != nil {
			return nil, fmt.Errorf("invalid date format %q (expected YYYY-MM-DD)", opts.After)
		}
		kept := sessions[:0]
		before := len(sessions)
		for _, s := range sessions {
			if !s.ModTime.Before(cutoff) {
				kept = append(kept, s)
			}
		}
		sessions = kept
		fmt.Fprintf(p.out, "  Date filter --after %s: %d -> %d\n", opts.After, before, len(sessions))
	}
	return sessions, nil
}

func (p *Pipeline) printDryRun(scanned, nonTrivial, cached, uncached int, opts Options) {
	cost, tokIn, tokOut := estimateCost(uncached, 0)
	fmt.Fprintf(p.out, "\n%s\n", rule)
	fmt.Fprintln(p.out, "DRY RUN - no API calls will be made")
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "  Sessions to scan:     %d\n", scanned)
	fmt.Fprintf(p.out, "  Non-trivial sessions: %d\n", nonTrivial)
	fmt.Fprintf(p.out, "  Cached facets:        %d\n", cached)
	fmt.Fprintf(p.out, "  Uncached (need API):  %d\n", uncached)
	fmt.Fprintln(p.out, "  Report API calls:     8")
	fmt.Fprintf(p.out, "  Model:                %s\n", p.cfg.Model)
	fmt.Fprintf(p.out, "  Est. input tokens:    %s\n", humanize.Comma(tokIn))
	fmt.Fprintf(p.out, "  Est. output tokens:   %s\n", humanize.Comma(tokOut))
	fmt.Fprintf(p.out, "  Est. cost:            $%s\n", cost.StringFixed(2))
	if opts.ProjectGlob != "" {
		fmt.Fprintf(p.out, "  Project filter:       %s\n", opts.ProjectGlob)
	}
	if opts.After != "" {
		fmt.Fprintf(p.out, "  Date filter:          after %s\n", opts.After)
	}
	fmt.Fprintln(p.out, rule)
}

// rawDump is the machine-readable companion to the HTML report.
func (p *Pipeline) rawDump(data *aggregate.Data, sections map[string]json.RawMessage) ([]byte, error) {
	dump := struct {
		Aggregated *aggregate.Data            `json:"aggregated"`
		Insights   map[string]json.RawMessage `json:"insights"`
		Config     map[string]any             `json:"config"`
	}{
		Aggregated: data,
		Insights:   sections,
		Config: map[string]any{
			"model":                  p.cfg.Model,
			"summarize_max_tokens":   p.cfg.SummarizeMaxTokens,
			"facet_max_tokens":       p.cfg.FacetMaxTokens,
			"report_max_tokens":      p.cfg.ReportSectionMaxTokens,
			"max_sessions":           p.cfg.MaxSessionsToProcess,
			"max_facets_for_report":  p.cfg.MaxFacetsForReport,
			"user_msg_truncate":      p.cfg.UserMsgTruncate,
			"assistant_msg_truncate": p.cfg.AssistantMsgTruncate,
		},
	}
	out, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding raw dump: %w", err)
	}
	return out, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}
