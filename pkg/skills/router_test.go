package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRouter(t *testing.T) *Router {
	t.Helper()
	router, err := NewRouter([]Skill{NewDocQA(), NewGPUDiagnosis()}, DocQAName, DefaultRoutes()...)
	require.NoError(t, err)
	return router
}

func TestRouter_Route(t *testing.T) {
	router := defaultRouter(t)

	tests := []struct {
		name    string
		text    string
		skill   string
		cleaned string
	}{
		{"gpu prefix", "/gpu my GPU is overheating", GPUDiagnosisName, "my GPU is overheating"},
		{"case insensitive", "/GPU ECC error", GPUDiagnosisName, "ECC error"},
		{"prefix only", "/gpu", GPUDiagnosisName, "/gpu"},
		{"prefix only padded", "  /gpu   ", GPUDiagnosisName, "/gpu"},
		{"surrounding whitespace", "  /gpu   NVLink down  ", GPUDiagnosisName, "NVLink down"},
		{"free text", "How do I check ECC counts?", DocQAName, "How do I check ECC counts?"},
		{"free text trimmed", "  hello  ", DocQAName, "hello"},
		{"prefix not at start", "what does /gpu do", DocQAName, "what does /gpu do"},
		{"empty", "", DocQAName, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skill, cleaned := router.Route(tt.text)
			assert.Equal(t, tt.skill, skill.Name())
			assert.Equal(t, tt.cleaned, cleaned)
		})
	}
}

func TestRouter_FirstMatchWins(t *testing.T) {
	ops := &Profile{ProfileName: "ops", Prompt: "ops"}
	router, err := NewRouter(
		[]Skill{NewDocQA(), NewGPUDiagnosis(), ops},
		DocQAName,
		Route{Prefix: "/g", Skill: "ops"},
		Route{Prefix: "/gpu", Skill: GPUDiagnosisName},
	)
	require.NoError(t, err)

	skill, cleaned := router.Route("/gpu hot")
	assert.Equal(t, "ops", skill.Name())
	assert.Equal(t, "pu hot", cleaned)
}

func TestNewRouter_Errors(t *testing.T) {
	t.Run("unknown default", func(t *testing.T) {
		_, err := NewRouter([]Skill{NewDocQA()}, "missing")
		assert.Error(t, err)
	})

	t.Run("route to unknown skill", func(t *testing.T) {
		_, err := NewRouter([]Skill{NewDocQA()}, DocQAName, DefaultRoutes()...)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), GPUDiagnosisName)
	})

	t.Run("empty prefix", func(t *testing.T) {
		_, err := NewRouter([]Skill{NewDocQA()}, DocQAName, Route{Prefix: " ", Skill: DocQAName})
		assert.Error(t, err)
	})
}

func TestRouter_Lookup(t *testing.T) {
	router := defaultRouter(t)

	s, ok := router.Skill(GPUDiagnosisName)
	require.True(t, ok)
	assert.Equal(t, GPUDiagnosisName, s.Name())

	_, ok = router.Skill("nope")
	assert.False(t, ok)
	assert.Equal(t, DocQAName, router.Default().Name())
}
