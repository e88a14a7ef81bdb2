package pipeline

import (
	"github.com/reasonloop/reasonloop/internal/config"
)

// State names one position in the reasoning state machine. Every query
// starts in StateAnalyzing and always reaches StateDone: no state blocks on
// a component failure, and every loop is bounded by max_iterations or the
// escalation ceiling.
type State string

const (
	StateAnalyzing       State = "analyzing"
	StateDirectExecuting State = "direct_executing"
	StateLightPlanning   State = "light_planning"
	StateDeepReasoning   State = "deep_reasoning"
	StateEvaluating      State = "evaluating"
	StateEscalating      State = "escalating"
	StateIterating       State = "iterating"
	StateSynthesizing    State = "synthesizing"
	StateDone            State = "done"
)

// strategyState maps a strategy to its executing state.
func strategyState(strategy string) State {
	switch strategy {
	case config.StrategyDirect:
		return StateDirectExecuting
	case config.StrategyDeepReasoning:
		return StateDeepReasoning
	default:
		return StateLightPlanning
	}
}

// nextStrategy returns the one-step escalation target. Escalation is
// monotonic and never skips a level; deep reasoning has nowhere to go.
func nextStrategy(strategy string) (string, bool) {
	switch strategy {
	case config.StrategyDirect:
		return config.StrategyLightPlanning, true
	case config.StrategyLightPlanning:
		return config.StrategyDeepReasoning, true
	default:
		return "", false
	}
}

// qualityThreshold returns the per-strategy minimum quality from config.
func qualityThreshold(cfg *config.ReasoningConfig, strategy string) float64 {
	switch strategy {
	case config.StrategyDirect:
		return cfg.MinQualityDirect
	case config.StrategyLightPlanning:
		return cfg.MinQualityLight
	default:
		return cfg.MinQualityDeep
	}
}
