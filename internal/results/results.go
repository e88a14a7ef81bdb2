// Package results holds the accumulated (sub-query, output) pairs a query
// gathers on its way through the pipeline.
package results

import (
	"fmt"
	"strings"
)

// Entry pairs a sub-query with the raw tool or model output produced for it.
// The accumulated set is append-only within one query and discarded at
// completion.
type Entry struct {
	Query  string
	Output string
}

// FormatNumbered renders entries as a numbered block for inclusion in
// prompts: "1. (sub-query) output".
func FormatNumbered(entries []Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. [%s]\n%s\n\n", i+1, e.Query, e.Output)
	}
	return strings.TrimRight(sb.String(), "\n")
}
