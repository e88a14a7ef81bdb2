package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/analyzer"
	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/evaluator"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/planner"
	"github.com/reasonloop/reasonloop/internal/prompts"
	"github.com/reasonloop/reasonloop/internal/results"
	"github.com/reasonloop/reasonloop/internal/synthesizer"
)

// Pipeline is the adaptive reasoning orchestrator. One Pipeline serves many
// concurrent queries; all per-query state lives in a runState local to Run,
// so queries never share mutable state.
type Pipeline struct {
	analyzer    *analyzer.Analyzer
	planner     *planner.Planner
	evaluator   *evaluator.Evaluator
	synthesizer *synthesizer.Synthesizer
	executor    ToolExecutor
	cfg         *config.ReasoningConfig
	logger      *zap.Logger
	tracer      trace.Tracer
}

// New wires a Pipeline from its collaborators. The prompt registry must
// already contain every template the stages need; main verifies that before
// construction.
func New(invoker llm.Invoker, executor ToolExecutor, registry *prompts.Registry, cfg *config.ReasoningConfig, logger *zap.Logger) (*Pipeline, error) {
	if executor == nil {
		return nil, errNoExecutor
	}
	return &Pipeline{
		analyzer:    analyzer.New(invoker, registry, cfg, logger.Named("analyzer")),
		planner:     planner.New(invoker, registry, cfg, logger.Named("planner")),
		evaluator:   evaluator.New(invoker, registry, cfg, logger.Named("evaluator")),
		synthesizer: synthesizer.New(invoker, registry, cfg, logger.Named("synthesizer")),
		executor:    executor,
		cfg:         cfg,
		logger:      logger,
		tracer:      otel.Tracer("reasonloop/pipeline"),
	}, nil
}

// runState is the per-query mutable state owned by one Run call.
type runState struct {
	query        string
	state        State
	strategy     string
	analysis     analyzer.ComplexityAnalysis
	accumulated  []results.Entry
	pending      []planner.SubTask
	iteration    int
	escalations  int
	lastResponse string
	answer       string
}

// Run drives one query through the state machine to completion. Component
// failures never surface here; the only errors Run returns are cancellation
// ones. Termination is structural: deep reasoning rounds are capped by
// max_iterations and escalation is capped at two one-way steps.
func (p *Pipeline) Run(ctx context.Context, query string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	rs := &runState{query: query, state: StateAnalyzing}
	start := time.Now()

	for rs.state != StateDone {
		// Cancellation is a clean abort, not a failure: partial accumulated
		// results are simply dropped.
		if err := ctx.Err(); err != nil {
			p.logger.Info("Query cancelled",
				zap.String("state", string(rs.state)),
				zap.Int("accumulated", len(rs.accumulated)),
			)
			return "", err
		}

		var err error
		switch rs.state {
		case StateAnalyzing:
			p.stepAnalyze(ctx, rs)
		case StateDirectExecuting:
			err = p.stepDirect(ctx, rs)
		case StateLightPlanning:
			err = p.stepLight(ctx, rs)
		case StateDeepReasoning:
			err = p.stepDeep(ctx, rs)
		case StateEvaluating:
			p.stepEvaluate(ctx, rs)
		case StateEscalating:
			p.stepEscalate(rs)
		case StateIterating:
			p.stepIterate(ctx, rs)
		case StateSynthesizing:
			p.stepSynthesize(ctx, rs)
		default:
			// Unknown state would mean a programming error; finish rather
			// than spin.
			rs.state = StateSynthesizing
		}
		if err != nil {
			// Only cancellation errors escape the steps.
			return "", err
		}
	}

	span.SetAttributes(
		attribute.String("strategy", rs.strategy),
		attribute.Int("iterations", rs.iteration),
		attribute.Int("escalations", rs.escalations),
	)
	metrics.QueriesCompleted.WithLabelValues(rs.strategy, "ok").Inc()
	metrics.QueryDuration.WithLabelValues(rs.strategy).Observe(time.Since(start).Seconds())
	if rs.iteration > 0 {
		metrics.ResearchIterations.Observe(float64(rs.iteration))
	}

	p.logger.Info("Query complete",
		zap.String("strategy", rs.strategy),
		zap.Int("iterations", rs.iteration),
		zap.Int("escalations", rs.escalations),
		zap.Int("results", len(rs.accumulated)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rs.answer, nil
}

// stepAnalyze picks the execution strategy: forced by config, or recommended
// by the analyzer and clamped so trivially simple queries never pay for
// planning.
func (p *Pipeline) stepAnalyze(ctx context.Context, rs *runState) {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	if p.cfg.ForceStrategy != "" {
		rs.analysis = analyzer.Fallback()
		rs.strategy = p.cfg.ForceStrategy
	} else {
		rs.analysis = p.analyzer.Analyze(ctx, rs.query)
		rs.strategy = rs.analysis.RecommendedStrategy
		// Safety clamp: a SIMPLE query always runs direct, whatever the
		// model recommended.
		if rs.analysis.Level == analyzer.LevelSimple {
			rs.strategy = config.StrategyDirect
		}
	}

	metrics.QueriesStarted.WithLabelValues(rs.strategy).Inc()
	p.logger.Info("Strategy selected",
		zap.String("strategy", rs.strategy),
		zap.String("level", string(rs.analysis.Level)),
		zap.Bool("forced", p.cfg.ForceStrategy != ""),
	)
	rs.state = strategyState(rs.strategy)
}

// stepDirect answers the query in one shot through the tool collaborator.
func (p *Pipeline) stepDirect(ctx context.Context, rs *runState) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.direct")
	defer span.End()

	entry, err := p.executeOne(ctx, planner.SubTask{
		ID:       "direct",
		Priority: planner.PriorityHigh,
		Query:    rs.query,
	})
	if err != nil {
		return err
	}
	rs.accumulated = append(rs.accumulated, entry)
	rs.lastResponse = entry.Output
	rs.state = StateEvaluating
	return nil
}

// stepLight decomposes shallowly and executes each subtask once, in
// priority order, with no iteration.
func (p *Pipeline) stepLight(ctx context.Context, rs *runState) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.light_planning")
	defer span.End()

	plan := p.planner.Plan(ctx, rs.query, rs.analysis, planner.ModeLight)
	tasks := byPriority(plan.Subtasks)

	var outputs []string
	for _, task := range tasks {
		entry, err := p.executeOne(ctx, task)
		if err != nil {
			return err
		}
		rs.accumulated = append(rs.accumulated, entry)
		if entry.Output != "" {
			outputs = append(outputs, entry.Output)
		}
	}
	rs.lastResponse = strings.Join(outputs, "\n\n")
	rs.state = StateEvaluating
	return nil
}

// stepDeep runs one deep-reasoning round: plan on the first round, then
// execute all pending subtasks concurrently up to the fan-out bound. The
// evaluator runs only after the whole round has completed.
func (p *Pipeline) stepDeep(ctx context.Context, rs *runState) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.deep_round")
	defer span.End()

	if rs.iteration == 0 {
		plan := p.planner.Plan(ctx, rs.query, rs.analysis, planner.ModeDeep)
		rs.pending = byPriority(plan.Subtasks)
	}

	entries, err := p.executeRound(ctx, rs.pending, p.roundFanout(rs.analysis.EstimatedToolCount))
	if err != nil {
		return err
	}
	rs.accumulated = append(rs.accumulated, entries...)
	rs.pending = nil
	rs.iteration++
	rs.state = StateEvaluating
	return nil
}

// stepEvaluate routes to escalation, iteration, or synthesis based on the
// evaluator's verdict for the active strategy.
func (p *Pipeline) stepEvaluate(ctx context.Context, rs *runState) {
	ctx, span := p.tracer.Start(ctx, "pipeline.evaluate")
	defer span.End()

	if rs.strategy == config.StrategyDeepReasoning {
		verdict := p.evaluator.EvaluateResearch(ctx, rs.query, rs.accumulated, rs.iteration, p.cfg.MaxIterations)
		switch {
		case verdict.Sufficient,
			verdict.Confidence >= p.cfg.MinConfidence,
			rs.iteration >= p.cfg.MaxIterations:
			rs.state = StateSynthesizing
		default:
			rs.pending = subtasksFromQueries(verdict.AdditionalQueries)
			rs.state = StateIterating
		}
		return
	}

	verdict := p.evaluator.EvaluateQuality(ctx, rs.query, rs.lastResponse, rs.strategy)
	insufficient := !verdict.Sufficient &&
		(verdict.Escalate || verdict.Confidence < qualityThreshold(p.cfg, rs.strategy))
	if insufficient {
		if _, ok := nextStrategy(rs.strategy); ok {
			rs.state = StateEscalating
			return
		}
	}
	rs.state = StateSynthesizing
}

// stepEscalate performs a single one-way strategy upgrade.
func (p *Pipeline) stepEscalate(rs *runState) {
	next, ok := nextStrategy(rs.strategy)
	if !ok {
		rs.state = StateSynthesizing
		return
	}
	metrics.Escalations.WithLabelValues(rs.strategy, next).Inc()
	p.logger.Info("Escalating strategy",
		zap.String("from", rs.strategy),
		zap.String("to", next),
		zap.Int("escalations", rs.escalations+1),
	)
	rs.strategy = next
	rs.escalations++
	rs.state = strategyState(next)
}

// stepIterate queues the evaluator's gap-filling queries for the next
// round. Gap queries run at high priority since they address identified
// deficiencies. With no new queries there is nothing left to try, so the
// pipeline synthesizes what it has instead of burning empty rounds.
func (p *Pipeline) stepIterate(_ context.Context, rs *runState) {
	if len(rs.pending) == 0 {
		p.logger.Info("No gap-filling queries produced; forcing synthesis",
			zap.Int("iteration", rs.iteration),
		)
		rs.state = StateSynthesizing
		return
	}
	rs.state = StateDeepReasoning
}

// stepSynthesize filters and merges everything accumulated into the final
// answer.
func (p *Pipeline) stepSynthesize(ctx context.Context, rs *runState) {
	ctx, span := p.tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()

	filtered := p.synthesizer.FilterResults(ctx, rs.query, rs.accumulated)
	rs.answer = p.synthesizer.Synthesize(ctx, rs.query, filtered)
	rs.state = StateDone
}

// byPriority orders subtasks by priority, ties broken by plan order.
func byPriority(tasks []planner.SubTask) []planner.SubTask {
	out := make([]planner.SubTask, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func subtasksFromQueries(queries []string) []planner.SubTask {
	var out []planner.SubTask
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, planner.SubTask{
			ID:       uuid.New().String(),
			Priority: planner.PriorityHigh,
			Query:    q,
		})
	}
	return out
}
