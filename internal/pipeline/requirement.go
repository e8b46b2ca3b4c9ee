package pipeline

import (
	"context"
	"fmt"
	"strings"

	"techmatch/talent-matcher/internal/models"
)

// generateRequirement summarizes the uploaded PDF into a one-sentence staffing
// requirement. The file bytes are released whatever the outcome.
func (p *Pipeline) generateRequirement(ctx context.Context, s *State) (Patch, error) {
	gen, err := p.generator.Generate(ctx, models.GenerationRequest{
		Model:  s.Model,
		Prompt: requirementFromPDFPrompt,
		Attachment: &models.Attachment{
			Data:      s.FileBytes,
			MediaType: normalizeMediaType(s.Input.File().MediaType),
		},
	})
	if err != nil {
		return Patch{DropFileBytes: true}, newStageError(KindPromptGenerationFailed, StageGenerateRequirement,
			fmt.Sprintf("Failed to generate prompt from PDF: %v", err), err)
	}

	text := strings.TrimSpace(gen.Text)
	if text == "" {
		return Patch{DropFileBytes: true, Usage: gen.Usage}, newStageError(KindPromptGenerationFailed, StageGenerateRequirement,
			"Failed to generate prompt from PDF: the model returned an empty response.", nil)
	}

	return Patch{
		RequirementText: text,
		DropFileBytes:   true,
		Usage:           gen.Usage,
	}, nil
}
