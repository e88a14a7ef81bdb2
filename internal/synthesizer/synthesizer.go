package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/extract"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/prompts"
	"github.com/reasonloop/reasonloop/internal/results"
)

const (
	// filterThreshold is the result count at or below which filtering is a
	// passthrough.
	filterThreshold = 3
	// filterKeep is how many results survive relevance filtering.
	filterKeep = 7
)

// Synthesizer filters and merges accumulated results into a final answer.
type Synthesizer struct {
	invoker  llm.Invoker
	registry *prompts.Registry
	cfg      *config.ReasoningConfig
	logger   *zap.Logger
}

// New creates a Synthesizer.
func New(invoker llm.Invoker, registry *prompts.Registry, cfg *config.ReasoningConfig, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{invoker: invoker, registry: registry, cfg: cfg, logger: logger}
}

// FilterResults keeps the most relevant results. Three or fewer pass through
// unchanged; otherwise the model ranks them and the top entries are kept in
// rank order. On any failure the first entries in original order are kept
// instead: a deterministic, explainable degradation.
func (s *Synthesizer) FilterResults(ctx context.Context, query string, entries []results.Entry) []results.Entry {
	if len(entries) <= filterThreshold {
		return entries
	}

	keep := filterKeep
	if keep > len(entries) {
		keep = len(entries)
	}

	prompt, err := s.registry.Render(prompts.TemplateFilterResults, map[string]string{
		"query":   query,
		"results": results.FormatNumbered(entries),
	})
	if err != nil {
		s.logger.Error("Filter prompt unavailable", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("synthesizer", "prompt").Inc()
		return entries[:keep]
	}

	response, err := s.invoker.Invoke(ctx, prompt, s.cfg.Models.Synthesizer)
	if err != nil {
		s.logger.Warn("Relevance ranking call failed; keeping leading results", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("synthesizer", "transport").Inc()
		return entries[:keep]
	}

	ranked := extract.IndexList(response, "RANKING", len(entries))
	if len(ranked) == 0 {
		s.logger.Warn("Ranking response unparsable; keeping leading results",
			zap.Int("response_len", len(response)),
		)
		metrics.ComponentFallbacks.WithLabelValues("synthesizer", "parse").Inc()
		return entries[:keep]
	}

	// Take ranked indices in model order; fill any shortfall from the
	// original sequence, stable, so omitted or duplicated ranks never lose
	// results arbitrarily.
	picked := make([]results.Entry, 0, keep)
	seen := make(map[int]bool, keep)
	for _, idx := range ranked {
		if len(picked) == keep {
			break
		}
		picked = append(picked, entries[idx])
		seen[idx] = true
	}
	for i := 0; len(picked) < keep && i < len(entries); i++ {
		if !seen[i] {
			picked = append(picked, entries[i])
		}
	}
	return picked
}

// Synthesize merges results into the final answer. A single result is
// returned verbatim with no model call, so single-source answers carry no
// paraphrase risk. On model failure the results are concatenated under
// labelled headings; that fallback is plain formatting and cannot fail.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, entries []results.Entry) string {
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return entries[0].Output
	}

	prompt, err := s.registry.Render(prompts.TemplateSynthesize, map[string]string{
		"query":   query,
		"results": results.FormatNumbered(entries),
	})
	if err != nil {
		s.logger.Error("Synthesis prompt unavailable", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("synthesizer", "prompt").Inc()
		return concatenate(entries)
	}

	response, err := s.invoker.Invoke(ctx, prompt, s.cfg.Models.Synthesizer)
	if err != nil {
		s.logger.Warn("Synthesis call failed; concatenating results", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("synthesizer", "transport").Inc()
		return concatenate(entries)
	}
	return strings.TrimSpace(response)
}

func concatenate(entries []results.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "Source %d: %s\n%s\n\n", i+1, e.Query, e.Output)
	}
	return strings.TrimRight(sb.String(), "\n")
}
