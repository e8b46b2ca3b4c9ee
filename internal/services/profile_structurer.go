package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error)
}

// ProfileStructurer turns the assembled profile context into structured
// profiles for the recruiter view.
type ProfileStructurer interface {
	Structure(ctx context.Context, model, requirement, profileContext string) ([]models.StructuredProfile, models.TokenUsage, error)
}

type profileStructurer struct {
	generator     Generator
	promptBuilder *PromptBuilder
	log           *zap.Logger
}

func NewProfileStructurer(generator Generator, log *zap.Logger) ProfileStructurer {
	return &profileStructurer{
		generator:     generator,
		promptBuilder: NewPromptBuilder(),
		log:           logger.Named(log, "structurer"),
	}
}

// Structure implements ProfileStructurer. An empty context yields no profiles
// without calling the model.
func (s *profileStructurer) Structure(ctx context.Context, model, requirement, profileContext string) ([]models.StructuredProfile, models.TokenUsage, error) {
	if strings.TrimSpace(profileContext) == "" {
		return []models.StructuredProfile{}, models.TokenUsage{}, nil
	}

	prompt := s.promptBuilder.BuildStructureProfilesPrompt(requirement, profileContext)
	s.log.Debug("📝 Structure prompt built", zap.Int("characters", len(prompt)))

	temperature := float32(0)
	gen, err := s.generator.Generate(ctx, models.GenerationRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: &temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, models.TokenUsage{}, fmt.Errorf("failed to structure profiles: %w", err)
	}

	profiles, err := parseProfiles(gen.Text)
	if err != nil {
		s.log.Error("❌ Failed to parse structured profiles",
			zap.String("response", logger.TruncateForLog(gen.Text, 200)),
			zap.Error(err),
		)
		return nil, gen.Usage, fmt.Errorf("failed to parse structured profiles: %w", err)
	}
	if profiles == nil {
		profiles = []models.StructuredProfile{}
	}

	s.log.Info("✅ Profiles structured",
		zap.String(logger.FieldModel, gen.Model),
		zap.Int("profiles", len(profiles)),
	)
	return profiles, gen.Usage, nil
}

// parseProfiles accepts a bare array or an object wrapping it in "profiles".
func parseProfiles(text string) ([]models.StructuredProfile, error) {
	var profiles []models.StructuredProfile
	err := parseJSONResponse(text, &profiles)
	if err == nil {
		return profiles, nil
	}

	var wrapped struct {
		Profiles []models.StructuredProfile `json:"profiles"`
	}
	if werr := parseJSONResponse(text, &wrapped); werr == nil && wrapped.Profiles != nil {
		return wrapped.Profiles, nil
	}
	return nil, err
}

func parseJSONResponse(response string, target any) error {
	// the model may wrap the JSON in markdown
	jsonStr := extractJSON(response)

	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}

// extractJSON cuts the outermost JSON array or object out of text that may
// contain markdown fences or prose.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	// an array wins when it opens before the first object
	if startArr != -1 && endArr > startArr && (startObj == -1 || startArr < startObj) {
		return text[startArr : endArr+1]
	}
	if startObj != -1 && endObj > startObj {
		return text[startObj : endObj+1]
	}

	return strings.TrimSpace(text)
}
