package evaluator

import (
	"context"

	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/extract"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/prompts"
	"github.com/reasonloop/reasonloop/internal/results"
)

// Result is one evaluation verdict. Produced fresh per call, never mutated,
// consumed immediately by the pipeline.
type Result struct {
	Sufficient        bool
	Confidence        float64
	MissingAspects    []string
	AdditionalQueries []string // research mode
	Escalate          bool     // quality mode
}

// Evaluator judges research completeness and answer quality. Both entry
// points share one parsing discipline and are acceptance-biased: an unknown
// verdict means "stop", because over-iterating costs more than an
// occasionally incomplete answer.
type Evaluator struct {
	invoker  llm.Invoker
	registry *prompts.Registry
	cfg      *config.ReasoningConfig
	logger   *zap.Logger
}

// New creates an Evaluator.
func New(invoker llm.Invoker, registry *prompts.Registry, cfg *config.ReasoningConfig, logger *zap.Logger) *Evaluator {
	return &Evaluator{invoker: invoker, registry: registry, cfg: cfg, logger: logger}
}

// acceptDefault is the safe verdict used on any transport or parse failure.
func (e *Evaluator) acceptDefault() Result {
	return Result{
		Sufficient: true,
		Confidence: e.cfg.MinConfidence,
		Escalate:   false,
	}
}

// EvaluateResearch asks whether the accumulated results collectively answer
// the query. iteration and maxIterations feed the deterministic guardrails
// that override model judgment at the loop boundaries.
func (e *Evaluator) EvaluateResearch(ctx context.Context, query string, accumulated []results.Entry, iteration, maxIterations int) Result {
	verdict := e.evaluate(ctx, "research", prompts.TemplateEvaluateResearch, map[string]string{
		"query":   query,
		"results": results.FormatNumbered(accumulated),
	})

	// Deterministic guardrails. The model's judgment is advisory at the
	// boundaries of the loop.
	original := verdict.Sufficient
	if iteration >= maxIterations {
		verdict.Sufficient = true
	}
	if iteration <= 1 && len(accumulated) == 0 {
		verdict.Sufficient = false
	}
	if verdict.Sufficient != original {
		e.logger.Info("Evaluation guardrail override",
			zap.Bool("model_verdict", original),
			zap.Bool("final_verdict", verdict.Sufficient),
			zap.Int("iteration", iteration),
			zap.Int("max_iterations", maxIterations),
		)
	}
	return verdict
}

// EvaluateQuality asks whether a direct or light-planning response is
// adequate, and whether escalation to a deeper strategy is warranted.
func (e *Evaluator) EvaluateQuality(ctx context.Context, query, response, strategyUsed string) Result {
	verdict := e.evaluate(ctx, "quality", prompts.TemplateEvaluateQuality, map[string]string{
		"query":    query,
		"response": response,
		"strategy": strategyUsed,
	})
	return verdict
}

func (e *Evaluator) evaluate(ctx context.Context, kind, template string, vars map[string]string) Result {
	prompt, err := e.registry.Render(template, vars)
	if err != nil {
		e.logger.Error("Evaluation prompt unavailable", zap.String("kind", kind), zap.Error(err))
		metrics.ComponentFallbacks.WithLabelValues("evaluator", "prompt").Inc()
		return e.acceptDefault()
	}

	response, err := e.invoker.Invoke(ctx, prompt, e.cfg.Models.Evaluator)
	if err != nil {
		e.logger.Warn("Evaluation call failed; accepting current results",
			zap.String("kind", kind),
			zap.Error(err),
		)
		metrics.ComponentFallbacks.WithLabelValues("evaluator", "transport").Inc()
		return e.acceptDefault()
	}

	verdict, ok := e.parse(response)
	if !ok {
		e.logger.Warn("Evaluation response unparsable; accepting current results",
			zap.String("kind", kind),
			zap.Int("response_len", len(response)),
		)
		metrics.ComponentFallbacks.WithLabelValues("evaluator", "parse").Inc()
		return e.acceptDefault()
	}
	return verdict
}

// parse extracts the verdict fields. The SUFFICIENT marker is the only
// required one; everything else degrades field by field.
func (e *Evaluator) parse(response string) (Result, bool) {
	if _, ok := extract.Field(response, "SUFFICIENT"); !ok {
		return Result{}, false
	}

	additional := extract.Bullets(response, "ADDITIONAL QUERIES")
	if len(additional) == 0 {
		additional = extract.CommaList(response, "ADDITIONAL QUERIES")
	}

	return Result{
		Sufficient:        extract.Bool(response, "SUFFICIENT", true),
		Confidence:        extract.Confidence(response, "CONFIDENCE", e.cfg.MinConfidence),
		MissingAspects:    extract.CommaList(response, "MISSING"),
		AdditionalQueries: additional,
		Escalate:          extract.Bool(response, "ESCALATE", false),
	}, true
}
