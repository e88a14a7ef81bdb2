package planner

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/analyzer"
	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/extract"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/prompts"
)

// Priority orders subtask execution; lower is more urgent.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Mode selects the decomposition depth.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDeep  Mode = "deep"
)

// SubTask is one decomposed unit of work. Never mutated after creation.
type SubTask struct {
	ID        string
	Priority  Priority
	Query     string
	ToolHints []string
}

// ResearchPlan is an ordered set of subtasks. Always holds at least one
// subtask: total decomposition failure wraps the original query.
type ResearchPlan struct {
	Subtasks           []SubTask
	ComplexityEstimate string // "low", "medium", "high"
}

// Planner decomposes queries into prioritized subtasks.
type Planner struct {
	invoker  llm.Invoker
	registry *prompts.Registry
	cfg      *config.ReasoningConfig
	logger   *zap.Logger
}

// New creates a Planner.
func New(invoker llm.Invoker, registry *prompts.Registry, cfg *config.ReasoningConfig, logger *zap.Logger) *Planner {
	return &Planner{invoker: invoker, registry: registry, cfg: cfg, logger: logger}
}

// MaxSubtasks returns the subtask cap for the given mode.
func (p *Planner) MaxSubtasks(mode Mode) int {
	if mode == ModeDeep {
		return p.cfg.MaxSubtasksDeep
	}
	return p.cfg.MaxSubtasksLight
}

// Plan decomposes the query. It never fails: any transport or parse problem
// yields a single-subtask plan carrying the original query, so the pipeline
// can always make forward progress.
func (p *Planner) Plan(ctx context.Context, query string, analysis analyzer.ComplexityAnalysis, mode Mode) ResearchPlan {
	maxSubtasks := p.MaxSubtasks(mode)

	prompt, err := p.registry.Render(prompts.TemplateDecompose, map[string]string{
		"query":        query,
		"max_subtasks": strconv.Itoa(maxSubtasks),
		"mode":         string(mode),
	})
	if err != nil {
		p.logger.Error("Decomposition prompt unavailable", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("planner", "prompt").Inc()
		return fallbackPlan(query)
	}

	response, err := p.invoker.Invoke(ctx, prompt, p.cfg.Models.Planner)
	if err != nil {
		p.logger.Warn("Decomposition call failed; planning single subtask", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("planner", "transport").Inc()
		return fallbackPlan(query)
	}

	subtasks := parseTaggedLines(response)
	if len(subtasks) == 0 {
		subtasks = parseNumberedList(response)
	}
	if len(subtasks) == 0 {
		p.logger.Warn("Decomposition response unparsable; planning single subtask",
			zap.Int("response_len", len(response)),
		)
		metrics.ComponentFallbacks.WithLabelValues("planner", "parse").Inc()
		return fallbackPlan(query)
	}

	// The cap is enforced here, never delegated to the model.
	if len(subtasks) > maxSubtasks {
		subtasks = subtasks[:maxSubtasks]
	}

	plan := ResearchPlan{
		Subtasks:           subtasks,
		ComplexityEstimate: estimateFor(analysis.Level),
	}
	p.logger.Debug("Decomposition complete",
		zap.String("mode", string(mode)),
		zap.Int("subtasks", len(plan.Subtasks)),
	)
	return plan
}

func fallbackPlan(query string) ResearchPlan {
	return ResearchPlan{
		Subtasks: []SubTask{{
			ID:       uuid.New().String(),
			Priority: PriorityHigh,
			Query:    query,
		}},
		ComplexityEstimate: "medium",
	}
}

func estimateFor(level analyzer.Level) string {
	switch level {
	case analyzer.LevelSimple:
		return "low"
	case analyzer.LevelComplex:
		return "high"
	default:
		return "medium"
	}
}

var taggedLineRe = regexp.MustCompile(`(?im)^\s*[-*\d.)\s]*\[(HIGH|URGENT|MEDIUM|LOW)\]\s*(.+)$`)

// parseTaggedLines is the primary parse strategy: priority-tagged lines of
// the form "[HIGH] sub-query | tools: a, b".
func parseTaggedLines(response string) []SubTask {
	var out []SubTask
	for _, m := range taggedLineRe.FindAllStringSubmatch(response, -1) {
		query, hints := splitToolHints(m[2])
		if query == "" {
			continue
		}
		out = append(out, SubTask{
			ID:        uuid.New().String(),
			Priority:  priorityFromTag(m[1]),
			Query:     query,
			ToolHints: hints,
		})
	}
	return out
}

// parseNumberedList is the fallback parse strategy: a plain numbered list.
// The first item is treated as most urgent, the next two as medium, the
// rest as low.
func parseNumberedList(response string) []SubTask {
	items := extract.NumberedItems(response)
	var out []SubTask
	for i, item := range items {
		query, hints := splitToolHints(item)
		if query == "" {
			continue
		}
		out = append(out, SubTask{
			ID:        uuid.New().String(),
			Priority:  priorityFromPosition(i),
			Query:     query,
			ToolHints: hints,
		})
	}
	return out
}

func priorityFromTag(tag string) Priority {
	switch strings.ToUpper(tag) {
	case "HIGH", "URGENT":
		return PriorityHigh
	case "LOW":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func priorityFromPosition(i int) Priority {
	switch {
	case i == 0:
		return PriorityHigh
	case i <= 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// splitToolHints separates "sub-query | tools: a, b" into the query text and
// its tool hints.
func splitToolHints(line string) (string, []string) {
	query := strings.TrimSpace(line)
	var hints []string
	if idx := strings.Index(strings.ToLower(query), "| tools:"); idx >= 0 {
		rest := query[idx+len("| tools:"):]
		query = strings.TrimSpace(query[:idx])
		for _, h := range strings.Split(rest, ",") {
			h = strings.TrimSpace(h)
			if h != "" {
				hints = append(hints, h)
			}
		}
	}
	return query, hints
}
