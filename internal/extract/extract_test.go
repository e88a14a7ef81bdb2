package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldVariants(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"plain", "SUFFICIENT: yes", "yes", true},
		{"lowercase label", "sufficient: no", "no", true},
		{"markdown bullet", "- SUFFICIENT: yes", "yes", true},
		{"bold label", "**SUFFICIENT**: yes", "yes", true},
		{"equals separator", "SUFFICIENT = yes", "yes", true},
		{"absent", "nothing here", "", false},
		{"empty value", "SUFFICIENT:", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Field(tc.text, "SUFFICIENT")
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBool(t *testing.T) {
	assert.True(t, Bool("ESCALATE: yes", "ESCALATE", false))
	assert.False(t, Bool("ESCALATE: no, the answer is fine", "ESCALATE", true))
	assert.True(t, Bool("ESCALATE: TRUE", "ESCALATE", false))
	// Absent or garbled values fall back to the default.
	assert.True(t, Bool("no markers at all", "ESCALATE", true))
	assert.False(t, Bool("ESCALATE: maybe", "ESCALATE", false))
}

func TestInt(t *testing.T) {
	assert.Equal(t, 3, Int("ITERATIONS: 3", "ITERATIONS", 1))
	assert.Equal(t, 2, Int("ITERATIONS: about 2 rounds", "ITERATIONS", 1))
	assert.Equal(t, 1, Int("no field", "ITERATIONS", 1))
}

func TestConfidence(t *testing.T) {
	// 0-100 scale normalizes to [0,1].
	assert.InDelta(t, 0.85, Confidence("CONFIDENCE: 85", "CONFIDENCE", 0.5), 1e-9)
	// 0.0-1.0 passes through.
	assert.InDelta(t, 0.6, Confidence("CONFIDENCE: 0.6", "CONFIDENCE", 0.5), 1e-9)
	// Absent returns the default exactly.
	assert.Equal(t, 0.7, Confidence("nothing", "CONFIDENCE", 0.7))
	// Unparsable returns the default exactly.
	assert.Equal(t, 0.7, Confidence("CONFIDENCE: high", "CONFIDENCE", 0.7))
	// Percent sign tolerated.
	assert.InDelta(t, 0.9, Confidence("CONFIDENCE: 90%", "CONFIDENCE", 0.5), 1e-9)
}

func TestCommaList(t *testing.T) {
	assert.Equal(t, []string{"pricing", "timeline"}, CommaList("MISSING: pricing, timeline", "MISSING"))
	assert.Nil(t, CommaList("MISSING: none", "MISSING"))
	assert.Nil(t, CommaList("no field", "MISSING"))
}

func TestBullets(t *testing.T) {
	text := `SUFFICIENT: no
ADDITIONAL QUERIES:
- who founded the company
- what year was it founded
CONFIDENCE: 40
`
	got := Bullets(text, "ADDITIONAL QUERIES")
	assert.Equal(t, []string{"who founded the company", "what year was it founded"}, got)
}

func TestBulletsStopsAtNextField(t *testing.T) {
	text := `ADDITIONAL QUERIES:
- first
MISSING: a, b
- not part of the list anymore`
	got := Bullets(text, "ADDITIONAL QUERIES")
	assert.Equal(t, []string{"first"}, got)
}

func TestNumberedItems(t *testing.T) {
	text := `Here is a plan:
1. find the founding date
2) check the latest funding round
3. summarize the product line`
	got := NumberedItems(text)
	assert.Equal(t, []string{
		"find the founding date",
		"check the latest funding round",
		"summarize the product line",
	}, got)
}

func TestIndexList(t *testing.T) {
	// 1-based in, 0-based out; duplicates and out-of-range dropped.
	got := IndexList("RANKING: 3, 1, 3, 9, 2", "RANKING", 5)
	assert.Equal(t, []int{2, 0, 1}, got)
	assert.Nil(t, IndexList("no ranking here", "RANKING", 5))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("This is COMPLEX work", "complex"))
	assert.False(t, ContainsAny("simple", "complex", "hard"))
}
