package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmatch/talent-matcher/internal/models"
)

type stubGenerator struct {
	requests []models.GenerationRequest
	text     string
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, req models.GenerationRequest) (*models.Generation, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Generation{Text: s.text, Model: req.Model, Usage: models.TokenUsage{InputTokens: 100, OutputTokens: 50}}, nil
}

func TestProfileStructurer_ParsesFencedArray(t *testing.T) {
	gen := &stubGenerator{text: "```json\n[{\"fullName\":\"Ana Ruiz\",\"skills\":[\"React\",\"Tailwind\"],\"similarityScore\":\"81.2%\"}]\n```"}
	s := NewProfileStructurer(gen, nil)

	profiles, usage, err := s.Structure(context.Background(), "gemini-2.5-flash", "React dev", "Profile 1:\n...")
	require.NoError(t, err)

	require.Len(t, profiles, 1)
	assert.Equal(t, "Ana Ruiz", profiles[0].FullName)
	assert.Equal(t, []string{"React", "Tailwind"}, profiles[0].Skills)
	assert.Equal(t, 150, usage.Total())

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.True(t, req.JSON)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
	assert.Contains(t, req.Prompt, `Requerimiento del usuario: "React dev"`)
	assert.Contains(t, req.Prompt, "Profile 1:")
}

func TestProfileStructurer_WrappedObject(t *testing.T) {
	gen := &stubGenerator{text: `{"profiles":[{"fullName":"Luis"}]}`}
	profiles, _, err := NewProfileStructurer(gen, nil).Structure(context.Background(), "", "Go dev", "ctx")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Luis", profiles[0].FullName)
}

func TestProfileStructurer_EmptyContextSkipsModel(t *testing.T) {
	gen := &stubGenerator{}
	profiles, _, err := NewProfileStructurer(gen, nil).Structure(context.Background(), "", "Go dev", "  ")
	require.NoError(t, err)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
	assert.Empty(t, gen.requests)
}

func TestProfileStructurer_InvalidJSON(t *testing.T) {
	gen := &stubGenerator{text: "Lo siento, no puedo ayudar."}
	_, usage, err := NewProfileStructurer(gen, nil).Structure(context.Background(), "", "Go dev", "ctx")
	require.Error(t, err)
	assert.Equal(t, 100, usage.InputTokens)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, extractJSON("Here you go:\n```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `{"a":[1]}`, extractJSON(`{"a":[1]}`))
	assert.Equal(t, "plain", extractJSON("  plain "))
}
