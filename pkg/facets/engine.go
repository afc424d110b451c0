package facets

import (
	"context"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/santaclaude2025/insights/pkg/anthropic"
	"github.com/santaclaude2025/insights/pkg/config"
	"github.com/santaclaude2025/insights/pkg/jsonx"
	"github.com/santaclaude2025/insights/pkg/logger"
	"github.com/santaclaude2025/insights/pkg/metrics"
	"github.com/santaclaude2025/insights/pkg/transcript"
)

var tracer = otel.Tracer("insights/facets")

// MessageCreator is the slice of the Anthropic client the engine needs.
type MessageCreator interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// Engine extracts facets from sessions, cache first.
type Engine struct {
	client MessageCreator
	cache  *Cache
	cfg    config.Config

	// apiCalls counts messages actually sent, for the run summary.
	apiCalls atomic.Int64
}

func NewEngine(client MessageCreator, cache *Cache, cfg config.Config) *Engine {
	return &Engine{client: client, cache: cache, cfg: cfg}
}

// Extract returns the facet for one session. A cache hit skips the API
// entirely. A fresh extraction is validated and written back to the
// cache before returning.
func (e *Engine) Extract(ctx context.Context, events []transcript.Event, m *metrics.SessionMetrics) (*Facet, error) {
	if f := e.cache.Load(m.SessionID); f != nil {
		return f, nil
	}

	ctx, span := tracer.Start(ctx, "facets.extract",
		trace.WithAttributes(attribute.String("session.id", m.SessionID)))
	defer span.End()

	text := transcript.Serialize(events, e.cfg.UserMsgTruncate, e.cfg.AssistantMsgTruncate)
	text = e.sessionHeader(m) + text
	span.SetAttributes(attribute.Int("transcript.chars", len(text)))

	text = e.condense(ctx, text)

	e.apiCalls.Add(1)
	resp, err := e.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.FacetMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: facetSystemPrompt + text + facetSchema},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("facet extraction for %s: %w", shortID(m.SessionID), err)
	}

	var f Facet
	if !jsonx.ExtractInto(resp.GetTextContent(), &f) {
		err := fmt.Errorf("no JSON object in facet response for %s", shortID(m.SessionID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	f.SessionID = m.SessionID
	if err := f.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("facet for %s failed validation: %w", shortID(m.SessionID), err)
	}

	if err := e.cache.Save(&f); err != nil {
		logger.Warn("facet cache write failed", "session_id", m.SessionID, "error", err)
	}
	return &f, nil
}

func (e *Engine) sessionHeader(m *metrics.SessionMetrics) string {
	date := ""
	if !m.StartTime.IsZero() {
		date = m.StartTime.Format("2006-01-02T15:04:05Z07:00")
	}
	return fmt.Sprintf("Session: %s\nDate: %s\nProject: %s\nDuration: %d min\n\n",
		shortID(m.SessionID), date, m.Project, m.DurationMinutes)
}

// condense chunk-summarizes transcripts past the long-session
// threshold. A failed or empty chunk summary degrades to a raw prefix
// of the chunk so one bad call never sinks the session.
func (e *Engine) condense(ctx context.Context, text string) string {
	if len(text) <= e.cfg.LongSessionThreshold {
		return text
	}

	ctx, span := tracer.Start(ctx, "facets.condense",
		trace.WithAttributes(attribute.Int("transcript.chars", len(text))))
	defer span.End()

	chunks := transcript.Chunks(text, e.cfg.ChunkSize)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	fallbackLen := e.cfg.SummarizeMaxTokens * 4
	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		e.apiCalls.Add(1)
		resp, err := e.client.CreateMessage(ctx, &anthropic.MessagesRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.SummarizeMaxTokens,
			Messages: []anthropic.Message{
				{Role: "user", Content: chunkSummaryPrompt + chunk},
			},
		})
		if err != nil {
			logger.Warn("chunk summarization failed", "error", err)
			summaries = append(summaries, prefix(chunk, fallbackLen))
			continue
		}
		if s := resp.GetTextContent(); s != "" {
			summaries = append(summaries, s)
		} else {
			summaries = append(summaries, prefix(chunk, fallbackLen))
		}
	}

	joined := ""
	for i, s := range summaries {
		if i > 0 {
			joined += "\n\n---\n\n"
		}
		joined += s
	}
	return joined
}

// APICalls reports how many messages were sent so far.
func (e *Engine) APICalls() int64 {
	return e.apiCalls.Load()
}

func shortID(id string) string {
	return prefix(id, 8)
}

// prefix cuts s to at most n bytes without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
