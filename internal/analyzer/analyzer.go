package analyzer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/extract"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/prompts"
)

// Level classifies query complexity.
type Level string

const (
	LevelSimple  Level = "SIMPLE"
	LevelMedium  Level = "MEDIUM"
	LevelComplex Level = "COMPLEX"
)

// ComplexityAnalysis is the analyzer's verdict for one query. Immutable once
// produced; the pipeline owns it for the duration of the query.
type ComplexityAnalysis struct {
	Level               Level
	RecommendedStrategy string // config.Strategy* constant
	EstimatedIterations int
	RequiresResearch    bool
	RequiresSynthesis   bool
	MultiPartQuery      bool
	EstimatedToolCount  int
	Rationale           string
}

// Fallback is the deterministic analysis returned on any model or parse
// failure. The pipeline must never see a partially populated analysis, so
// this value is load-bearing: medium complexity, light planning, one
// iteration, research assumed needed.
func Fallback() ComplexityAnalysis {
	return ComplexityAnalysis{
		Level:               LevelMedium,
		RecommendedStrategy: config.StrategyLightPlanning,
		EstimatedIterations: 1,
		RequiresResearch:    true,
		RequiresSynthesis:   false,
		MultiPartQuery:      false,
		EstimatedToolCount:  0,
		Rationale:           "analysis unavailable; using conservative defaults",
	}
}

// Analyzer classifies queries via the model with keyword heuristics as a
// secondary parse strategy.
type Analyzer struct {
	invoker  llm.Invoker
	registry *prompts.Registry
	cfg      *config.ReasoningConfig
	logger   *zap.Logger
}

// New creates an Analyzer.
func New(invoker llm.Invoker, registry *prompts.Registry, cfg *config.ReasoningConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{invoker: invoker, registry: registry, cfg: cfg, logger: logger}
}

// Analyze classifies the query. It never fails: any transport or parse
// problem yields Fallback().
func (a *Analyzer) Analyze(ctx context.Context, query string) ComplexityAnalysis {
	prompt, err := a.registry.Render(prompts.TemplateComplexityAnalysis, map[string]string{
		"query": query,
	})
	if err != nil {
		// Startup validation makes this unreachable; degrade anyway.
		a.logger.Error("Analysis prompt unavailable", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("analyzer", "prompt").Inc()
		return Fallback()
	}

	response, err := a.invoker.Invoke(ctx, prompt, a.cfg.Models.Analyzer)
	if err != nil {
		a.logger.Warn("Complexity analysis call failed; using fallback", zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("analyzer", "transport").Inc()
		return Fallback()
	}

	analysis, ok := parseAnalysis(response, query)
	if !ok {
		a.logger.Warn("Complexity analysis response unparsable; using fallback",
			zap.Int("response_len", len(response)),
		)
		metrics.ComponentFallbacks.WithLabelValues("analyzer", "parse").Inc()
		return Fallback()
	}

	a.logger.Debug("Complexity analysis complete",
		zap.String("level", string(analysis.Level)),
		zap.String("strategy", analysis.RecommendedStrategy),
		zap.Int("iterations", analysis.EstimatedIterations),
	)
	return analysis
}

// parseAnalysis applies two strategies in order: explicit COMPLEXITY /
// STRATEGY markers, then keyword heuristics over the raw response and query.
func parseAnalysis(response, query string) (ComplexityAnalysis, bool) {
	level, levelOK := parseLevel(response)
	if !levelOK {
		level, levelOK = heuristicLevel(response, query)
	}
	if !levelOK {
		return ComplexityAnalysis{}, false
	}

	strategy, strategyOK := parseStrategy(response)
	if !strategyOK {
		strategy = defaultStrategyFor(level)
	}

	iterations := extract.Int(response, "ITERATIONS", 1)
	if iterations < 1 {
		iterations = 1
	}
	toolCount := extract.Int(response, "TOOL_COUNT", 0)
	if toolCount < 0 {
		toolCount = 0
	}

	rationale, _ := extract.Field(response, "RATIONALE")

	return ComplexityAnalysis{
		Level:               level,
		RecommendedStrategy: strategy,
		EstimatedIterations: iterations,
		RequiresResearch:    extract.Bool(response, "REQUIRES_RESEARCH", true),
		RequiresSynthesis:   extract.Bool(response, "REQUIRES_SYNTHESIS", false),
		MultiPartQuery:      extract.Bool(response, "MULTI_PART", false),
		EstimatedToolCount:  toolCount,
		Rationale:           rationale,
	}, true
}

func parseLevel(response string) (Level, bool) {
	val, ok := extract.Field(response, "COMPLEXITY")
	if !ok {
		val, ok = extract.Field(response, "LEVEL")
	}
	if !ok {
		return "", false
	}
	switch {
	case extract.ContainsAny(val, "simple", "trivial", "low"):
		return LevelSimple, true
	case extract.ContainsAny(val, "complex", "hard", "high"):
		return LevelComplex, true
	case extract.ContainsAny(val, "medium", "moderate"):
		return LevelMedium, true
	}
	return "", false
}

// heuristicLevel is the secondary parse strategy: keyword scanning when the
// structured markers are absent.
func heuristicLevel(response, query string) (Level, bool) {
	if extract.ContainsAny(response, "very complex", "multi-step", "requires extensive") {
		return LevelComplex, true
	}
	if extract.ContainsAny(response, "straightforward", "trivial", "single lookup") {
		return LevelSimple, true
	}
	// No usable signal in the response; fall back to the query shape.
	if strings.Count(query, "?") > 1 || extract.ContainsAny(query, "compare", " and ", "analyze", "explain why") {
		return LevelMedium, true
	}
	return "", false
}

func parseStrategy(response string) (string, bool) {
	val, ok := extract.Field(response, "STRATEGY")
	if !ok {
		return "", false
	}
	switch {
	case extract.ContainsAny(val, "deep"):
		return config.StrategyDeepReasoning, true
	case extract.ContainsAny(val, "light", "plan"):
		return config.StrategyLightPlanning, true
	case extract.ContainsAny(val, "direct", "single"):
		return config.StrategyDirect, true
	}
	return "", false
}

func defaultStrategyFor(level Level) string {
	switch level {
	case LevelSimple:
		return config.StrategyDirect
	case LevelComplex:
		return config.StrategyDeepReasoning
	default:
		return config.StrategyLightPlanning
	}
}
