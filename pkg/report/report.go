// Package report synthesizes the insight sections of the usage report
// with parallel Claude calls over the aggregated data.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/santaclaude2025/insights/pkg/aggregate"
	"github.com/santaclaude2025/insights/pkg/anthropic"
	"github.com/santaclaude2025/insights/pkg/config"
	"github.com/santaclaude2025/insights/pkg/facets"
	"github.com/santaclaude2025/insights/pkg/jsonx"
	"github.com/santaclaude2025/insights/pkg/logger"
)

var tracer = otel.Tracer("insights/report")

const glanceExcerptLen = 3000

// MessageCreator is the slice of the Anthropic client the generator
// needs.
type MessageCreator interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// Generator runs the two-phase report synthesis.
type Generator struct {
	client MessageCreator
	cfg    config.Config
}

func NewGenerator(client MessageCreator, cfg config.Config) *Generator {
	return &Generator{client: client, cfg: cfg}
}

// SectionNames returns the independent section names in generation
// order, not counting at_a_glance.
func SectionNames() []string {
	names := make([]string, len(sectionPrompts))
	for i, p := range sectionPrompts {
		names[i] = p.name
	}
	return names
}

// BuildPayload renders the aggregated data into the textual digest
// every report prompt receives.
func (g *Generator) BuildPayload(d *aggregate.Data, facetsByID map[string]*facets.Facet) (string, error) {
	digest := struct {
		Sessions     int                 `json:"sessions"`
		Analyzed     int                 `json:"analyzed"`
		DateRange    aggregate.DateRange `json:"date_range"`
		Messages     int                 `json:"messages"`
		Hours        int                 `json:"hours"`
		Commits      int                 `json:"commits"`
		TopTools     [][]any             `json:"top_tools"`
		TopGoals     [][]any             `json:"top_goals"`
		Outcomes     map[string]int      `json:"outcomes"`
		Satisfaction map[string]int      `json:"satisfaction"`
		Friction     map[string]int      `json:"friction"`
		Success      map[string]int      `json:"success"`
		Languages    map[string]int      `json:"languages"`
	}{
		Sessions:     d.TotalSessions,
		Analyzed:     d.SessionsWithFacets,
		DateRange:    d.DateRange,
		Messages:     d.TotalMessages,
		Hours:        int(math.Round(d.TotalDurationHours)),
		Commits:      d.GitCommits,
		TopTools:     topItems(d.ToolCounts, g.cfg.MaxTopItems),
		TopGoals:     topItems(d.GoalCategories, g.cfg.MaxTopItems),
		Outcomes:     d.Outcomes,
		Satisfaction: d.Satisfaction,
		Friction:     d.Friction,
		Success:      d.Success,
		Languages:    d.Languages,
	}
	encoded, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report payload: %w", err)
	}

	var summaries, frictionDetails []string
	for _, f := range orderedFacets(facetsByID, g.cfg.MaxFacetsForReport) {
		summaries = append(summaries, fmt.Sprintf("- %s (%s, %s)",
			orDefault(f.BriefSummary, "N/A"), orDefault(f.Outcome, "?"), orDefault(f.ClaudeHelpfulness, "?")))
		if f.FrictionDetail != "" {
			frictionDetails = append(frictionDetails, "- "+f.FrictionDetail)
		}
	}
	if len(frictionDetails) > g.cfg.MaxFrictionDetails {
		frictionDetails = frictionDetails[:g.cfg.MaxFrictionDetails]
	}

	var b strings.Builder
	b.Write(encoded)
	b.WriteString("\n\nSESSION SUMMARIES:\n")
	b.WriteString(strings.Join(summaries, "\n"))
	b.WriteString("\n\nFRICTION DETAILS:\n")
	b.WriteString(strings.Join(frictionDetails, "\n"))
	return b.String(), nil
}

// Generate runs all independent sections concurrently, then the
// dependent at_a_glance pass. A failed section is logged and omitted;
// the rest of the report still comes back.
func (g *Generator) Generate(ctx context.Context, payload string, progress func(name string, err error)) map[string]json.RawMessage {
	ctx, span := tracer.Start(ctx, "report.generate")
	defer span.End()

	results := make([]json.RawMessage, len(sectionPrompts))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.ReportParallelism)
	for i := range sectionPrompts {
		eg.Go(func() error {
			obj, err := g.section(gctx, sectionPrompts[i], payload)
			if err != nil {
				logger.Warn("report section failed", "section", sectionPrompts[i].name, "error", err)
			} else {
				results[i] = obj
			}
			if progress != nil {
				progress(sectionPrompts[i].name, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	sections := make(map[string]json.RawMessage, len(sectionPrompts)+1)
	for i, p := range sectionPrompts {
		if results[i] != nil {
			sections[p.name] = results[i]
		}
	}

	if glance, err := g.atAGlance(ctx, payload, sections); err != nil {
		logger.Warn("at_a_glance failed", "error", err)
		if progress != nil {
			progress("at_a_glance", err)
		}
	} else {
		sections["at_a_glance"] = glance
		if progress != nil {
			progress("at_a_glance", nil)
		}
	}
	return sections
}

func (g *Generator) section(ctx context.Context, p sectionPrompt, payload string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "report.section")
	span.SetAttributes(attribute.String("report.section", p.name))
	defer span.End()

	resp, err := g.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.ReportSectionMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: p.prompt + "\n\nDATA:\n" + payload},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("section %s: %w", p.name, err)
	}
	obj, ok := jsonx.ExtractObject(resp.GetTextContent())
	if !ok {
		err := fmt.Errorf("section %s: no JSON object in response", p.name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return obj, nil
}

// atAGlance synthesizes the overview from the payload plus excerpts of
// the already generated sections it depends on.
func (g *Generator) atAGlance(ctx context.Context, payload string, sections map[string]json.RawMessage) (json.RawMessage, error) {
	var b strings.Builder
	b.WriteString(payload)
	for _, name := range glanceSectionOrder {
		section, ok := sections[name]
		if !ok {
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, section, "", "  "); err != nil {
			continue
		}
		text := pretty.String()
		if len(text) > glanceExcerptLen {
			text = text[:glanceExcerptLen]
		}
		fmt.Fprintf(&b, "\n\n## %s:\n%s", name, text)
	}

	resp, err := g.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.ReportSectionMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: atAGlancePrompt + b.String()},
		},
	})
	if err != nil {
		return nil, err
	}
	obj, ok := jsonx.ExtractObject(resp.GetTextContent())
	if !ok {
		return nil, fmt.Errorf("no JSON object in at_a_glance response")
	}
	return obj, nil
}

// topItems returns the n highest counts as [name, count] pairs, ties
// broken by name.
func topItems(counts map[string]int, n int) [][]any {
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v != items[j].v {
			return items[i].v > items[j].v
		}
		return items[i].k < items[j].k
	})
	if len(items) > n {
		items = items[:n]
	}
	out := make([][]any, len(items))
	for i, it := range items {
		out[i] = []any{it.k, it.v}
	}
	return out
}

// orderedFacets returns up to n facets sorted by session id so the
// payload is stable across runs.
func orderedFacets(facetsByID map[string]*facets.Facet, n int) []*facets.Facet {
	ids := make([]string, 0, len(facetsByID))
	for id := range facetsByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	out := make([]*facets.Facet, len(ids))
	for i, id := range ids {
		out[i] = facetsByID[id]
	}
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
