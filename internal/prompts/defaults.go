package prompts

// Template names referenced by the pipeline. main verifies all of them are
// present at startup via Registry.MustHave.
const (
	TemplateComplexityAnalysis = "complexity_analysis"
	TemplateDecompose          = "decompose"
	TemplateEvaluateResearch   = "evaluate_research"
	TemplateEvaluateQuality    = "evaluate_quality"
	TemplateFilterResults      = "filter_results"
	TemplateSynthesize         = "synthesize"
)

// All returns every template name the pipeline requires.
func All() []string {
	return []string{
		TemplateComplexityAnalysis,
		TemplateDecompose,
		TemplateEvaluateResearch,
		TemplateEvaluateQuality,
		TemplateFilterResults,
		TemplateSynthesize,
	}
}

func builtinTemplates() []*Template {
	return []*Template{
		{
			Name:        TemplateComplexityAnalysis,
			Description: "Classify query complexity and recommend an execution strategy",
			Text: `Analyze the complexity of the following query and recommend an execution strategy.

Query: {query}

Respond with these fields, one per line:
COMPLEXITY: SIMPLE, MEDIUM, or COMPLEX
STRATEGY: DIRECT, LIGHT_PLANNING, or DEEP_REASONING
ITERATIONS: estimated number of research iterations needed (1-5)
REQUIRES_RESEARCH: yes or no
REQUIRES_SYNTHESIS: yes or no
MULTI_PART: yes or no (does the query contain multiple distinct questions?)
TOOL_COUNT: estimated number of tool calls needed (0 if none)
RATIONALE: one sentence explaining your classification
`,
		},
		{
			Name:        TemplateDecompose,
			Description: "Decompose a query into prioritized sub-queries",
			Text: `Decompose the following query into at most {max_subtasks} focused sub-queries
that can each be answered independently with external tools.

Query: {query}
Mode: {mode}

Format each sub-query on its own line as:
[HIGH] sub-query text | tools: tool1, tool2
[MEDIUM] sub-query text | tools: tool1
[LOW] sub-query text

Use [HIGH] for sub-queries that must be answered first. A plain numbered
list is also acceptable. Do not produce more than {max_subtasks} sub-queries.
`,
		},
		{
			Name:        TemplateEvaluateResearch,
			Description: "Judge whether accumulated results answer the query",
			Text: `Judge whether the accumulated results below collectively answer the original query.

Original query: {query}

Accumulated results:
{results}

Respond with these fields, one per line:
SUFFICIENT: yes or no
CONFIDENCE: 0-100
MISSING: comma-separated aspects still unanswered (omit if none)
ADDITIONAL QUERIES: one follow-up query per line, prefixed with "- " (omit if none)
`,
		},
		{
			Name:        TemplateEvaluateQuality,
			Description: "Judge whether a single response is adequate",
			Text: `Judge whether the response below adequately answers the query. The response
was produced with the {strategy} strategy.

Query: {query}

Response:
{response}

Respond with these fields, one per line:
SUFFICIENT: yes or no
CONFIDENCE: 0-100
MISSING: comma-separated aspects still unanswered (omit if none)
ESCALATE: yes or no (should a more thorough strategy be tried?)
`,
		},
		{
			Name:        TemplateFilterResults,
			Description: "Rank results by relevance to the query",
			Text: `Rank the numbered results below by relevance to the query, most relevant first.

Query: {query}

Results:
{results}

Respond with a single line:
RANKING: comma-separated result numbers, most relevant first (e.g. RANKING: 3, 1, 2)
`,
		},
		{
			Name:        TemplateSynthesize,
			Description: "Merge collected results into a final answer",
			Text: `Combine the results below into a single coherent answer to the query.
Resolve contradictions explicitly and do not invent facts that are not in
the results.

Query: {query}

Results:
{results}

Answer:
`,
		},
	}
}
