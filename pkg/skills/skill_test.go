package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentengine/pkg/memory"
)

func TestBuiltinSkills(t *testing.T) {
	ctx := context.Background()
	retriever := memory.NewKeywordRetriever(nil)

	t.Run("doc_qa", func(t *testing.T) {
		s := NewDocQA()
		assert.Equal(t, DocQAName, s.Name())
		assert.Equal(t, []string{"kb_query"}, s.AllowedTools())
		assert.Contains(t, s.SystemPrompt(), "documentation assistant")

		chunks, err := s.PreRetrieve(ctx, "GPU temperature fan speeds", retriever)
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
		assert.LessOrEqual(t, len(chunks), 3)
	})

	t.Run("gpu_diagnosis", func(t *testing.T) {
		s := NewGPUDiagnosis()
		assert.Equal(t, GPUDiagnosisName, s.Name())
		assert.Equal(t, []string{"log_search", "kb_query"}, s.AllowedTools())
		for _, field := range []string{`"summary"`, `"evidence"`, `"next_steps"`} {
			assert.Contains(t, s.SystemPrompt(), field)
		}

		chunks, err := s.PreRetrieve(ctx, "GPU error on node-5", retriever)
		require.NoError(t, err)
		assert.Len(t, chunks, 3)
	})

	t.Run("nil retriever", func(t *testing.T) {
		chunks, err := NewDocQA().PreRetrieve(ctx, "gpu", nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "profiles.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
default: support
profiles:
  - name: support
    system_prompt: "You help with tickets."
    allowed_tools: [kb_query]
    prefetch_k: 2
  - name: triage
    system_prompt: "You triage incidents."
    allowed_tools: [log_search]
routes:
  - prefix: /triage
    profile: triage
`), 0600))

		file, err := LoadProfiles(path)
		require.NoError(t, err)
		assert.Equal(t, "support", file.Default)
		require.Len(t, file.Skills(), 2)

		router, err := NewRouter(file.Skills(), file.Default, file.RouteTable()...)
		require.NoError(t, err)

		skill, cleaned := router.Route("/triage node-5 down")
		assert.Equal(t, "triage", skill.Name())
		assert.Equal(t, "node-5 down", cleaned)

		chunks, err := skill.PreRetrieve(context.Background(), "gpu", memory.NewKeywordRetriever(nil))
		require.NoError(t, err)
		assert.Empty(t, chunks)

		support, _ := router.Skill("support")
		chunks, err = support.PreRetrieve(context.Background(), "gpu nvidia-smi", memory.NewKeywordRetriever(nil))
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("missing prompt", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - name: x\n"), 0600))
		_, err := LoadProfiles(path)
		assert.Error(t, err)
	})

	t.Run("duplicate names", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - {name: x, system_prompt: a}
  - {name: x, system_prompt: b}
`), 0600))
		_, err := LoadProfiles(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProfiles(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
