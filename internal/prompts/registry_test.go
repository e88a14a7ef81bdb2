package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuiltinsCoverRequiredSet(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.MustHave(All()...))
}

func TestMustHaveReportsMissing(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	err := r.MustHave("no_such_template")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_template")
}

func TestRenderSubstitution(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	out, err := r.Render(TemplateComplexityAnalysis, map[string]string{
		"query": "what is the capital of France?",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "what is the capital of France?")
	assert.NotContains(t, out, "{query}")
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	tpl := &Template{Name: "x", Text: `literal {"json": true} and {query}`}
	out := tpl.Render(map[string]string{"query": "q"})
	assert.Equal(t, `literal {"json": true} and q`, out)
}

func TestLoadDirectoryOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := `name: synthesize
description: overridden
text: |
  Custom synthesis for {query}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synthesize.yaml"), []byte(overlay), 0o644))

	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.LoadDirectory(dir))

	out, err := r.Render(TemplateSynthesize, map[string]string{"query": "q1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Custom synthesis for q1"))
	// Builtins not named in the overlay survive.
	require.NoError(t, r.MustHave(All()...))
}

func TestLoadDirectoryMissingIsSilent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.LoadDirectory(filepath.Join(t.TempDir(), "absent")))
}

func TestLoadDirectoryRejectsBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nunknown_field: 1\n"), 0o644))

	r := NewRegistry(zap.NewNop())
	assert.Error(t, r.LoadDirectory(dir))
}

func TestLoadDirectoryRejectsNamelessTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anon.yaml"), []byte("text: hello\n"), 0o644))

	r := NewRegistry(zap.NewNop())
	assert.Error(t, r.LoadDirectory(dir))
}

func TestLoadTemplateStrictDecode(t *testing.T) {
	_, err := LoadTemplate(strings.NewReader("name: x\ntext: y\nbogus: z\n"))
	assert.Error(t, err)

	tpl, err := LoadTemplate(strings.NewReader("name: x\ntext: y\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", tpl.Name)
	assert.Equal(t, "y", tpl.Text)
}
