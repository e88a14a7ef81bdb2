package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/planner"
	"github.com/reasonloop/reasonloop/internal/prompts"
)

// scriptedInvoker answers each pipeline stage by recognizing a distinctive
// substring of its prompt template. Unmatched prompts fail loudly so a test
// never silently exercises a stage it did not script.
type scriptedInvoker struct {
	mu    sync.Mutex
	rules []scriptRule
	calls map[string]int
	err   error
}

type scriptRule struct {
	name     string
	marker   string
	response string
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{calls: make(map[string]int)}
}

func (s *scriptedInvoker) script(name, response string) {
	markers := map[string]string{
		"analysis":   "Analyze the complexity",
		"decompose":  "Decompose the following query",
		"research":   "collectively answer",
		"quality":    "adequately answers",
		"filter":     "Rank the numbered results",
		"synthesize": "Combine the results",
	}
	s.rules = append(s.rules, scriptRule{name: name, marker: markers[name], response: response})
}

func (s *scriptedInvoker) Invoke(_ context.Context, prompt string, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	for _, r := range s.rules {
		if strings.Contains(prompt, r.marker) {
			s.calls[r.name]++
			return r.response, nil
		}
	}
	return "", errors.New("unscripted prompt: " + firstLine(prompt))
}

func (s *scriptedInvoker) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// fakeExecutor answers subtasks from a function and counts invocations.
type fakeExecutor struct {
	mu    sync.Mutex
	fn    func(task planner.SubTask) (string, error)
	calls int
}

func (f *fakeExecutor) Execute(_ context.Context, task planner.SubTask) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(task)
	}
	return "result for: " + task.Query, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newPipeline(t *testing.T, inv *scriptedInvoker, exec ToolExecutor, cfg *config.ReasoningConfig) *Pipeline {
	t.Helper()
	p, err := New(inv, exec, prompts.NewRegistry(zap.NewNop()), cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewRequiresExecutor(t *testing.T) {
	_, err := New(newScriptedInvoker(), nil, prompts.NewRegistry(zap.NewNop()), config.Default(), zap.NewNop())
	assert.Error(t, err)
}

func TestSimpleQueryRunsDirect(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("analysis", "COMPLEXITY: SIMPLE\nSTRATEGY: DIRECT\nITERATIONS: 1\nREQUIRES_RESEARCH: no\n")
	inv.script("quality", "SUFFICIENT: yes\nCONFIDENCE: 90\nESCALATE: no\n")

	exec := &fakeExecutor{fn: func(planner.SubTask) (string, error) { return "4", nil }}
	p := newPipeline(t, inv, exec, config.Default())

	answer, err := p.Run(context.Background(), "what is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "4", answer, "single direct result must pass through untouched")
	assert.Equal(t, 1, exec.callCount())
	assert.Zero(t, inv.count("decompose"), "direct execution must never plan")
	assert.Zero(t, inv.count("synthesize"), "single results skip the synthesis model call")
}

func TestSimpleClampOverridesRecommendedStrategy(t *testing.T) {
	// The model contradicts itself: SIMPLE but deep reasoning. The clamp wins.
	inv := newScriptedInvoker()
	inv.script("analysis", "COMPLEXITY: SIMPLE\nSTRATEGY: DEEP_REASONING\n")
	inv.script("quality", "SUFFICIENT: yes\nCONFIDENCE: 90\n")

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, config.Default())

	_, err := p.Run(context.Background(), "trivial")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount())
	assert.Zero(t, inv.count("decompose"))
}

func TestForcedStrategySkipsAnalyzer(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("quality", "SUFFICIENT: yes\nCONFIDENCE: 90\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDirect

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	_, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Zero(t, inv.count("analysis"), "a forced strategy must not pay for analysis")
}

func TestTotalModelOutageStillAnswers(t *testing.T) {
	// Every model call fails. The chain of fallbacks must still produce the
	// tool's answer: analyzer -> light planning, planner -> single subtask,
	// evaluator -> accept, synthesizer -> verbatim single result.
	inv := newScriptedInvoker()
	inv.err = errors.New("llm service down")

	exec := &fakeExecutor{fn: func(task planner.SubTask) (string, error) {
		return "tool answer for " + task.Query, nil
	}}
	p := newPipeline(t, inv, exec, config.Default())

	answer, err := p.Run(context.Background(), "the query")
	require.NoError(t, err)
	assert.Equal(t, "tool answer for the query", answer)
	assert.Equal(t, 1, exec.callCount())
}

func TestDeepReasoningRoundsCappedByMaxIterations(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("decompose", "[HIGH] first fact\n[MEDIUM] second fact\n")
	// Never satisfied: only the iteration ceiling can stop the loop.
	inv.script("research", "SUFFICIENT: no\nCONFIDENCE: 10\nADDITIONAL QUERIES:\n- dig deeper\n")
	inv.script("synthesize", "merged answer")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDeepReasoning
	cfg.MaxIterations = 2

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	answer, err := p.Run(context.Background(), "hard question")
	require.NoError(t, err)

	// Round one runs the two planned subtasks, round two the one gap query.
	assert.Equal(t, 3, exec.callCount(), "exactly two rounds must run")
	assert.Equal(t, 2, inv.count("research"))
	assert.Equal(t, 1, inv.count("decompose"), "planning happens once, not per round")
	assert.Equal(t, "merged answer", answer)
}

func TestDeepReasoningStopsWhenSufficient(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("decompose", "[HIGH] only fact\n")
	inv.script("research", "SUFFICIENT: yes\nCONFIDENCE: 90\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDeepReasoning
	cfg.MaxIterations = 3

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	_, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount(), "a sufficient verdict must end the loop early")
}

func TestEmptyGapQueriesForceSynthesis(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("decompose", "[HIGH] lone subtask\n")
	// Insufficient but with nothing new to try: the loop must not spin.
	inv.script("research", "SUFFICIENT: no\nCONFIDENCE: 10\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDeepReasoning
	cfg.MaxIterations = 5

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	_, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount())
	assert.Equal(t, 1, inv.count("research"))
}

func TestEscalationClimbsOneLevelAtATime(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("quality", "SUFFICIENT: no\nCONFIDENCE: 10\nESCALATE: yes\n")
	inv.script("decompose", "[HIGH] part one\n[MEDIUM] part two\n")
	inv.script("research", "SUFFICIENT: yes\nCONFIDENCE: 90\n")
	inv.script("filter", "RANKING: 1, 2, 3, 4, 5")
	inv.script("synthesize", "final merged answer")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDirect

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	answer, err := p.Run(context.Background(), "underestimated question")
	require.NoError(t, err)

	// direct -> light -> deep, never skipping a level, never going back.
	assert.Equal(t, 2, inv.count("quality"), "quality is judged after direct and after light")
	assert.Equal(t, 1, inv.count("research"), "deep reasoning is judged once")
	assert.Equal(t, 2, inv.count("decompose"), "light and deep each plan once")
	// 1 direct + 2 light + 2 deep subtasks.
	assert.Equal(t, 5, exec.callCount())
	assert.Equal(t, "final merged answer", answer)
}

func TestInsufficientWithoutEscalationSignalStillSynthesizes(t *testing.T) {
	// Low confidence alone triggers escalation; decent confidence with a
	// merely hesitant verdict does not.
	inv := newScriptedInvoker()
	inv.script("quality", "SUFFICIENT: no\nCONFIDENCE: 80\nESCALATE: no\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDirect

	exec := &fakeExecutor{}
	p := newPipeline(t, inv, exec, cfg)

	_, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount(), "confident verdicts must not escalate")
}

func TestSubtaskRetryThenEmptyResult(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("quality", "SUFFICIENT: yes\nCONFIDENCE: 90\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDirect

	exec := &fakeExecutor{fn: func(planner.SubTask) (string, error) {
		return "", errors.New("tool broke")
	}}
	p := newPipeline(t, inv, exec, cfg)

	answer, err := p.Run(context.Background(), "q")
	require.NoError(t, err, "tool failure degrades to an empty result, not an error")
	assert.Empty(t, answer)
	assert.Equal(t, 2, exec.callCount(), "one retry, then give up")
}

func TestCancellationAbortsCleanly(t *testing.T) {
	inv := newScriptedInvoker()
	inv.script("quality", "SUFFICIENT: yes\nCONFIDENCE: 90\n")

	cfg := config.Default()
	cfg.ForceStrategy = config.StrategyDirect

	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExecutor{fn: func(planner.SubTask) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	p := newPipeline(t, inv, exec, cfg)

	answer, err := p.Run(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, answer, "partial results are dropped on cancellation")
}

func TestRoundFanoutBounds(t *testing.T) {
	cfg := config.Default() // MaxFanout: 4
	p := newPipeline(t, newScriptedInvoker(), &fakeExecutor{}, cfg)

	assert.Equal(t, 4, p.roundFanout(0), "unknown tool count uses the cap")
	assert.Equal(t, 2, p.roundFanout(2))
	assert.Equal(t, 4, p.roundFanout(9), "estimates never raise the cap")
}

func TestByPriorityIsStable(t *testing.T) {
	tasks := []planner.SubTask{
		{ID: "a", Priority: planner.PriorityLow},
		{ID: "b", Priority: planner.PriorityHigh},
		{ID: "c", Priority: planner.PriorityMedium},
		{ID: "d", Priority: planner.PriorityHigh},
	}
	got := byPriority(tasks)

	require.Len(t, got, 4)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID, "equal priorities keep plan order")
	assert.Equal(t, "c", got[2].ID)
	assert.Equal(t, "a", got[3].ID)
	assert.Equal(t, "a", tasks[0].ID, "input slice is not reordered")
}

func TestSubtasksFromQueriesSkipsBlanks(t *testing.T) {
	got := subtasksFromQueries([]string{"real question", "  ", ""})
	require.Len(t, got, 1)
	assert.Equal(t, "real question", got[0].Query)
	assert.Equal(t, planner.PriorityHigh, got[0].Priority)
	assert.NotEmpty(t, got[0].ID)
}
